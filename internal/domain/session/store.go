package session

import (
	"context"
	"sync"
)

// slot is the field group owned by one role. Mutations build a new slot and
// assign it in one step, so a snapshot never sees a half-cleared role.
type slot struct {
	user          *User
	admin         *Admin
	tokens        Tokens
	authenticated bool
	loading       bool
	err           string
	state         State
}

type Store struct {
	mu       sync.Mutex
	user     slot
	admin    slot
	watchers map[int]chan Session
	nextID   int
}

func NewStore() *Store {
	return &Store{watchers: map[int]chan Session{}}
}

func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Watch publishes the current session and then every later mutation. A slow
// reader only ever receives the newest snapshot.
func (s *Store) Watch(ctx context.Context) <-chan Session {
	ch := make(chan Session, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	ch <- s.snapshot()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func (s *Store) ApplyLoginStart(role Role) {
	s.mutate(role, func(cur slot) slot {
		cur.loading = true
		cur.err = ""
		return cur
	})
}

func (s *Store) ApplyLoginSuccess(role Role, identity Identity, tokens Tokens) error {
	next, err := authenticatedSlot(role, identity, tokens)
	if err != nil {
		return err
	}
	next.state = StateVerified
	s.mutate(role, func(slot) slot { return next })
	return nil
}

// ApplyLoginFailure records message and clears loading. Whatever the slot held
// before the attempt is kept, so a failed re-login never drops a live session.
func (s *Store) ApplyLoginFailure(role Role, message string) {
	s.mutate(role, func(cur slot) slot {
		cur.loading = false
		cur.err = message
		return cur
	})
}

// ApplyError sets the role's error field for flows other than login.
func (s *Store) ApplyError(role Role, message string) {
	s.mutate(role, func(cur slot) slot {
		cur.err = message
		return cur
	})
}

func (s *Store) ApplyLogout(role Role) {
	s.mutate(role, func(slot) slot { return slot{} })
}

// ApplyInvalid tears the role down like a logout but leaves the Invalid tag so
// views can tell an expired session apart from one that never existed.
func (s *Store) ApplyInvalid(role Role, message string) {
	s.mutate(role, func(slot) slot { return slot{state: StateInvalid, err: message} })
}

func (s *Store) ApplyTokenRefresh(role Role, tokens Tokens) error {
	return s.replaceTokens(role, tokens, func(slot) bool { return true })
}

// ApplyTokenRefreshIf replaces the tokens only while the slot still holds
// the refresh token the renewal started from. A slot that was logged out or
// signed in again in the meantime fails with ErrSessionReplaced.
func (s *Store) ApplyTokenRefreshIf(role Role, prevRefresh string, tokens Tokens) error {
	return s.replaceTokens(role, tokens, func(cur slot) bool { return cur.tokens.Refresh == prevRefresh })
}

func (s *Store) replaceTokens(role Role, tokens Tokens, current func(slot) bool) error {
	if tokens.Access == "" {
		return ErrMissingToken
	}
	var applyErr error
	s.mutate(role, func(cur slot) slot {
		if !cur.authenticated {
			applyErr = ErrNotAuthenticated
			return cur
		}
		if !current(cur) {
			applyErr = ErrSessionReplaced
			return cur
		}
		if tokens.Refresh == "" {
			tokens.Refresh = cur.tokens.Refresh
		}
		cur.tokens = tokens
		cur.state = StateVerified
		return cur
	})
	return applyErr
}

// ApplyRestore seeds a role from durable storage. The slot is authenticated
// optimistically and stays Unverified until a protected call confirms it.
func (s *Store) ApplyRestore(role Role, identity Identity, tokens Tokens) error {
	next, err := authenticatedSlot(role, identity, tokens)
	if err != nil {
		return err
	}
	next.state = StateUnverified
	s.mutate(role, func(slot) slot { return next })
	return nil
}

func (s *Store) ApplyVerified(role Role) {
	s.mutate(role, func(cur slot) slot {
		if cur.authenticated && cur.state != StateVerified {
			cur.state = StateVerified
		}
		return cur
	})
}

func (s *Store) clearLoading(role Role) {
	s.mutate(role, func(cur slot) slot {
		cur.loading = false
		return cur
	})
}

func (s *Store) mutate(role Role, fn func(slot) slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role.Slot() == RoleAdmin {
		s.admin = fn(s.admin)
	} else {
		s.user = fn(s.user)
	}
	s.publish()
}

func (s *Store) publish() {
	if len(s.watchers) == 0 {
		return
	}
	snap := s.snapshot()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Store) snapshot() Session {
	out := Session{
		IsAuthenticatedUser:  s.user.authenticated,
		IsAuthenticatedAdmin: s.admin.authenticated,
		UserToken:            s.user.tokens.Access,
		UserRefreshToken:     s.user.tokens.Refresh,
		AdminToken:           s.admin.tokens.Access,
		AdminRefreshToken:    s.admin.tokens.Refresh,
		LoadingUser:          s.user.loading,
		LoadingAdmin:         s.admin.loading,
		ErrorUser:            s.user.err,
		ErrorAdmin:           s.admin.err,
		UserState:            s.user.state,
		AdminState:           s.admin.state,
	}
	if s.user.user != nil {
		u := *s.user.user
		out.User = &u
	}
	if s.admin.admin != nil {
		a := *s.admin.admin
		out.Admin = &a
	}
	return out
}

func authenticatedSlot(role Role, identity Identity, tokens Tokens) (slot, error) {
	if !role.Valid() {
		return slot{}, ErrInvalidRole
	}
	if tokens.Access == "" {
		return slot{}, ErrMissingToken
	}
	next := slot{tokens: tokens, authenticated: true}
	if role.Slot() == RoleAdmin {
		if identity.Admin == nil || identity.User != nil {
			return slot{}, ErrIdentityMismatch
		}
		a := *identity.Admin
		if a.Role == "" {
			a.Role = role
		}
		next.admin = &a
		return next, nil
	}
	if identity.User == nil || identity.Admin != nil {
		return slot{}, ErrIdentityMismatch
	}
	u := *identity.User
	next.user = &u
	return next, nil
}
