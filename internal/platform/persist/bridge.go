package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"hrmportal/internal/domain/session"
	"hrmportal/internal/platform/crypto"
)

// Durable keys. Nothing outside this package writes them.
const (
	KeyLegacyToken         = "token"
	KeyMockRole            = "mockRole"
	KeyUserInfo            = "userInfo"
	KeyUserToken           = "userToken"
	KeyUserRefreshToken    = "userRefreshToken"
	KeyUserRefreshExpires  = "userRefreshExpires"
	KeyAdminInfo           = "adminInfo"
	KeyAdminToken          = "adminToken"
	KeyAdminRefreshToken   = "adminRefreshToken"
	KeyAdminRefreshExpires = "adminRefreshExpires"
)

type roleKeys struct {
	info, token, refresh, expires string
}

func keysFor(role session.Role) roleKeys {
	if role.Slot() == session.RoleAdmin {
		return roleKeys{info: KeyAdminInfo, token: KeyAdminToken, refresh: KeyAdminRefreshToken, expires: KeyAdminRefreshExpires}
	}
	return roleKeys{info: KeyUserInfo, token: KeyUserToken, refresh: KeyUserRefreshToken, expires: KeyUserRefreshExpires}
}

type Bridge struct {
	KV     KV
	Sealer *crypto.Sealer
	Logger *slog.Logger
}

func NewBridge(kv KV, sealer *crypto.Sealer) *Bridge {
	return &Bridge{KV: kv, Sealer: sealer}
}

func (b *Bridge) Save(ctx context.Context, role session.Role, identity session.Identity, tokens session.Tokens) error {
	k := keysFor(role)
	info, err := encodeIdentity(role, identity)
	if err != nil {
		return err
	}
	values, err := b.tokenValues(k, tokens)
	if err != nil {
		return err
	}
	values[k.info] = info
	values[KeyLegacyToken] = values[k.token]
	values[KeyMockRole] = string(role)
	return b.KV.Set(ctx, values)
}

func (b *Bridge) SaveTokens(ctx context.Context, role session.Role, tokens session.Tokens) error {
	k := keysFor(role)
	values, err := b.tokenValues(k, tokens)
	if err != nil {
		return err
	}
	owner, err := b.legacyOwner(ctx)
	if err != nil {
		return err
	}
	if owner != "" && owner.Slot() == role.Slot() {
		values[KeyLegacyToken] = values[k.token]
	}
	return b.KV.Set(ctx, values)
}

// Remove deletes the role's keys. The legacy single-role keys go too when they
// were written for this role.
func (b *Bridge) Remove(ctx context.Context, role session.Role) error {
	k := keysFor(role)
	keys := []string{k.info, k.token, k.refresh, k.expires}
	owner, err := b.legacyOwner(ctx)
	if err != nil {
		return err
	}
	if owner == "" {
		owner = session.RoleUser
	}
	if owner.Slot() == role.Slot() {
		keys = append(keys, KeyLegacyToken, KeyMockRole)
	}
	return b.KV.Delete(ctx, keys...)
}

func (b *Bridge) Load(ctx context.Context) ([]session.Restored, error) {
	var out []session.Restored
	for _, role := range []session.Role{session.RoleUser, session.RoleAdmin} {
		restored, ok, err := b.loadRole(ctx, role)
		if err != nil {
			return nil, err
		}
		if !ok {
			restored, ok, err = b.loadLegacy(ctx, role)
			if err != nil {
				return nil, err
			}
		}
		if ok {
			out = append(out, restored)
		}
	}
	return out, nil
}

func (b *Bridge) loadRole(ctx context.Context, role session.Role) (session.Restored, bool, error) {
	k := keysFor(role)
	access, ok, err := b.read(ctx, k.token)
	if err != nil || !ok {
		return session.Restored{}, false, err
	}
	refresh, _, err := b.read(ctx, k.refresh)
	if err != nil {
		return session.Restored{}, false, err
	}
	rawInfo, _, err := b.KV.Get(ctx, k.info)
	if err != nil {
		return session.Restored{}, false, err
	}
	identity, actual, err := decodeIdentity(role, rawInfo)
	if err != nil {
		b.logger().Warn("dropping unreadable persisted identity", "role", role, "err", err)
		return session.Restored{}, false, b.KV.Delete(ctx, k.info, k.token, k.refresh, k.expires)
	}
	tokens := session.Tokens{Access: access, Refresh: refresh}
	if rawExp, ok, err := b.KV.Get(ctx, k.expires); err == nil && ok {
		if exp, perr := time.Parse(time.RFC3339, rawExp); perr == nil {
			tokens.RefreshExpires = exp
		}
	}
	return session.Restored{Role: actual, Identity: identity, Tokens: tokens}, true, nil
}

// loadLegacy restores the single-role layout (token + userInfo + mockRole)
// written before tokens were stored per role.
func (b *Bridge) loadLegacy(ctx context.Context, slot session.Role) (session.Restored, bool, error) {
	owner, err := b.legacyOwner(ctx)
	if err != nil {
		return session.Restored{}, false, err
	}
	if owner == "" {
		owner = session.RoleUser
	}
	if owner.Slot() != slot {
		return session.Restored{}, false, nil
	}
	access, ok, err := b.read(ctx, KeyLegacyToken)
	if err != nil || !ok {
		return session.Restored{}, false, err
	}
	rawInfo, ok, err := b.KV.Get(ctx, KeyUserInfo)
	if err != nil || !ok {
		return session.Restored{}, false, err
	}
	identity, actual, err := decodeIdentity(owner, rawInfo)
	if err != nil {
		b.logger().Warn("dropping unreadable legacy session", "err", err)
		return session.Restored{}, false, b.KV.Delete(ctx, KeyLegacyToken, KeyUserInfo, KeyMockRole)
	}
	return session.Restored{Role: actual, Identity: identity, Tokens: session.Tokens{Access: access}}, true, nil
}

func (b *Bridge) legacyOwner(ctx context.Context) (session.Role, error) {
	raw, ok, err := b.KV.Get(ctx, KeyMockRole)
	if err != nil || !ok {
		return "", err
	}
	role, valid := session.ParseRole(raw)
	if !valid {
		return "", nil
	}
	return role, nil
}

func (b *Bridge) tokenValues(k roleKeys, tokens session.Tokens) (map[string]string, error) {
	access, err := b.Sealer.Seal(tokens.Access)
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}
	values := map[string]string{k.token: access}
	if tokens.Refresh != "" {
		refresh, err := b.Sealer.Seal(tokens.Refresh)
		if err != nil {
			return nil, fmt.Errorf("seal refresh token: %w", err)
		}
		values[k.refresh] = refresh
	}
	if !tokens.RefreshExpires.IsZero() {
		values[k.expires] = tokens.RefreshExpires.UTC().Format(time.RFC3339)
	}
	return values, nil
}

func (b *Bridge) read(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := b.KV.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	value, err := b.Sealer.Open(raw)
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", key, err)
	}
	return value, true, nil
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func encodeIdentity(role session.Role, identity session.Identity) (string, error) {
	var payload any
	if role.Slot() == session.RoleAdmin {
		if identity.Admin == nil {
			return "", session.ErrIdentityMismatch
		}
		payload = identity.Admin
	} else {
		if identity.User == nil {
			return "", session.ErrIdentityMismatch
		}
		payload = identity.User
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeIdentity(role session.Role, raw string) (session.Identity, session.Role, error) {
	if raw == "" {
		return session.Identity{}, role, session.ErrIdentityMismatch
	}
	if role.Slot() == session.RoleAdmin {
		var admin session.Admin
		if err := json.Unmarshal([]byte(raw), &admin); err != nil {
			return session.Identity{}, role, err
		}
		actual := role
		if admin.Role.Valid() && admin.Role.Slot() == session.RoleAdmin {
			actual = admin.Role
		}
		return session.Identity{Admin: &admin}, actual, nil
	}
	var user session.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return session.Identity{}, role, err
	}
	return session.Identity{User: &user}, session.RoleUser, nil
}
