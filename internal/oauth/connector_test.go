package oauth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

type fakeAPI struct {
	authorized  bool
	statusCalls atomic.Int32
	revoked     bool
}

func (f *fakeAPI) AuthorizationURL(context.Context) (domain.AuthorizationRequest, error) {
	return domain.AuthorizationRequest{URL: "https://login.example.com/authorize", State: "s-1"}, nil
}

func (f *fakeAPI) AuthorizationStatus(context.Context) (domain.AuthorizationStatus, error) {
	f.statusCalls.Add(1)
	return domain.AuthorizationStatus{Authorized: f.authorized && !f.revoked}, nil
}

func (f *fakeAPI) RevokeAuthorization(context.Context) error {
	f.revoked = true
	return nil
}

type memStates struct{ state string }

func (m *memStates) OAuthState() (string, bool)    { return m.state, m.state != "" }
func (m *memStates) SaveOAuthState(s string) error { m.state = s; return nil }
func (m *memStates) ClearOAuthState() error        { m.state = ""; return nil }

type fakeWindow struct{ closed atomic.Bool }

func (w *fakeWindow) Closed() bool { return w.closed.Load() }

var fastConfig = Config{PollInterval: 5 * time.Millisecond, Timeout: time.Second}

func TestConnect_PopupBlockedNeverPolls(t *testing.T) {
	api := &fakeAPI{}
	states := &memStates{}
	opener := OpenerFunc(func(string) (Window, error) { return nil, errors.New("no browser") })
	c := NewConnector(api, opener, states, fastConfig, nil)

	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrPopupBlocked)
	assert.Equal(t, int32(0), api.statusCalls.Load())
	assert.Empty(t, states.state)
	assert.False(t, c.InProgress())
}

func TestConnect_ClosedWithoutCompletion(t *testing.T) {
	api := &fakeAPI{authorized: false}
	states := &memStates{}
	w := &fakeWindow{}
	var opened string
	opener := OpenerFunc(func(url string) (Window, error) {
		opened = url
		assert.Equal(t, "s-1", states.state)
		return w, nil
	})
	c := NewConnector(api, opener, states, fastConfig, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		w.closed.Store(true)
	}()

	status, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Authorized)
	assert.Equal(t, "https://login.example.com/authorize", opened)
	assert.Equal(t, int32(1), api.statusCalls.Load())
	assert.Empty(t, states.state)
}

func TestConnect_HandshakeCompletesFlow(t *testing.T) {
	api := &fakeAPI{authorized: true}
	states := &memStates{}
	w := &fakeWindow{} // never closes
	c := NewConnector(api, OpenerFunc(func(string) (Window, error) { return w, nil }), states,
		Config{PollInterval: 5 * time.Millisecond, Timeout: time.Minute}, nil)

	go func() {
		assert.Eventually(t, c.InProgress, time.Second, time.Millisecond)
		c.NotifyCompleted("wrong-state")
		time.Sleep(20 * time.Millisecond)
		c.NotifyCompleted("s-1")
	}()

	start := time.Now()
	status, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Authorized)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestConnect_Timeout(t *testing.T) {
	api := &fakeAPI{}
	c := NewConnector(api, OpenerFunc(func(string) (Window, error) { return &fakeWindow{}, nil }), &memStates{},
		Config{PollInterval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}, nil)

	status, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Authorized)
}

func TestConnect_ContextCancelled(t *testing.T) {
	c := NewConnector(&fakeAPI{}, OpenerFunc(func(string) (Window, error) { return &fakeWindow{}, nil }), &memStates{},
		Config{PollInterval: 5 * time.Millisecond, Timeout: time.Minute}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotifyCompleted_OutsideFlowIgnored(t *testing.T) {
	c := NewConnector(&fakeAPI{}, nil, &memStates{}, fastConfig, nil)
	c.NotifyCompleted("")
	assert.False(t, c.InProgress())
}

func TestRevoke_RefreshesStatus(t *testing.T) {
	api := &fakeAPI{authorized: true}
	c := NewConnector(api, nil, &memStates{}, fastConfig, nil)

	status, err := c.Revoke(context.Background())
	require.NoError(t, err)
	assert.True(t, api.revoked)
	assert.False(t, status.Authorized)
}
