package access

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGroupClient struct {
	mu     sync.Mutex
	calls  []PlatformUserID
	banned map[PlatformUserID]bool
	err    error
	block  bool
}

func (f *fakeGroupClient) LiftRestriction(ctx context.Context, groupID string, userID PlatformUserID) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return f.err
	}
	if f.banned != nil {
		delete(f.banned, userID)
	}
	return nil
}

type fakeGuildClient struct {
	mu    sync.Mutex
	n     int
	err   error
	guild string
}

func (f *fakeGuildClient) CreateInvite(ctx context.Context, guildID, channelID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.guild != "" && f.guild != guildID {
		return "", ErrTargetNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("https://discord.gg/inv%d", f.n), nil
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(map[string]int64{"Alice@Example.com": 42, "zero@example.com": 0})

	id, err := r.Resolve(context.Background(), " alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, PlatformUserID(42), id)

	_, err = r.Resolve(context.Background(), "nobody@example.com")
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, ErrUnknownSubject)

	_, err = r.Resolve(context.Background(), "zero@example.com")
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestLoadStaticResolver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identities.yml")
	require.NoError(t, os.WriteFile(path, []byte("alice@example.com: 1001\nbob@example.com: 1002\n"), 0o600))

	r, err := LoadStaticResolver(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	id, err := r.Resolve(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, PlatformUserID(1002), id)

	_, err = LoadStaticResolver(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestGroupGrantor_LiftsRestrictionForResolvedUser(t *testing.T) {
	client := &fakeGroupClient{banned: map[PlatformUserID]bool{7: true}}
	g := NewGroupGrantor(client, NewStaticResolver(map[string]int64{"alice@example.com": 7}), "-100123", time.Second)

	grant, err := g.Grant(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, GroupGrantorName, grant.Grantor)
	assert.Equal(t, []PlatformUserID{7}, client.calls)
	assert.Empty(t, client.banned)

	// repeating is harmless
	require.NoError(t, g.GrantGroupAccess(context.Background(), "alice@example.com"))
	assert.Len(t, client.calls, 2)
}

func TestGroupGrantor_ResolutionFailureSkipsRemoteCall(t *testing.T) {
	client := &fakeGroupClient{}
	g := NewGroupGrantor(client, NewStaticResolver(nil), "-100123", time.Second)

	err := g.GrantGroupAccess(context.Background(), "ghost@example.com")
	var ge *GrantError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, GroupGrantorName, ge.Grantor)
	var re *ResolutionError
	assert.ErrorAs(t, err, &re)
	assert.Empty(t, client.calls)
}

func TestGroupGrantor_WrapsPlainResolverErrors(t *testing.T) {
	resolver := ResolverFunc(func(ctx context.Context, subjectID string) (PlatformUserID, error) {
		return 0, errors.New("lookup service down")
	})
	g := NewGroupGrantor(&fakeGroupClient{}, resolver, "g", time.Second)

	err := g.GrantGroupAccess(context.Background(), "a@example.com")
	var re *ResolutionError
	assert.ErrorAs(t, err, &re)
}

func TestGroupGrantor_RemoteErrorAndTimeout(t *testing.T) {
	resolver := NewStaticResolver(map[string]int64{"bob@example.com": 9})

	g := NewGroupGrantor(&fakeGroupClient{err: errors.New("Too Many Requests")}, resolver, "g", time.Second)
	err := g.GrantGroupAccess(context.Background(), "bob@example.com")
	var ge *GrantError
	require.ErrorAs(t, err, &ge)
	assert.Contains(t, err.Error(), "Too Many Requests")

	hung := NewGroupGrantor(&fakeGroupClient{block: true}, resolver, "g", 20*time.Millisecond)
	start := time.Now()
	err = hung.GrantGroupAccess(context.Background(), "bob@example.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGuildGrantor_FreshInvitePerCall(t *testing.T) {
	g := NewGuildGrantor(&fakeGuildClient{guild: "guild"}, "guild", "chan", time.Second)

	first, err := g.Grant(context.Background(), "alice@example.com")
	require.NoError(t, err)
	second, err := g.Grant(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, first.InviteURL)
	assert.NotEqual(t, first.InviteURL, second.InviteURL)
	assert.Equal(t, GuildGrantorName, first.Grantor)
}

func TestGuildGrantor_Failures(t *testing.T) {
	g := NewGuildGrantor(&fakeGuildClient{guild: "other"}, "guild", "chan", time.Second)
	_, err := g.Grant(context.Background(), "alice@example.com")
	var ge *GrantError
	require.ErrorAs(t, err, &ge)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = NewGuildGrantor(&fakeGuildClient{err: ErrNotConnected}, "guild", "chan", time.Second).
		CreateGuildInvite(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestChatMemberConfig(t *testing.T) {
	numeric := chatMemberConfig("-1001234", 5)
	assert.Equal(t, int64(-1001234), numeric.ChatID)
	assert.Equal(t, int64(5), numeric.UserID)

	named := chatMemberConfig("@paidgroup", 5)
	assert.Equal(t, int64(0), named.ChatID)
	assert.Equal(t, "@paidgroup", named.SuperGroupUsername)
}
