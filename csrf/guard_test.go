package csrf

import (
	"errors"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRequest struct {
	post   map[string]string
	query  map[string]string
	header map[string]string
	host   string
}

func (f fakeRequest) PostValue(name string) (string, bool) {
	v, ok := f.post[name]
	return v, ok
}

func (f fakeRequest) QueryValue(name string) (string, bool) {
	v, ok := f.query[name]
	return v, ok
}

func (f fakeRequest) Header(name string) string { return f.header[name] }
func (f fakeRequest) Host() string              { return f.host }

type clock struct{ now time.Time }

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGuard(c *clock, cfg Config) *Guard {
	cfg.Now = c.Now
	return New(cfg)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

type countingObserver struct {
	issued, deleted int
	checked         []Reason
}

func (o *countingObserver) TokenIssued()          { o.issued++ }
func (o *countingObserver) TokenDeleted()         { o.deleted++ }
func (o *countingObserver) TokenChecked(r Reason) { o.checked = append(o.checked, r) }

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGenerateDefaults(t *testing.T) {
	c := newClock()
	g := newTestGuard(c, Config{})
	s := MapSession{}

	tok, err := g.Generate(s)
	require.NoError(t, err)
	assert.Regexp(t, hexToken, tok)
	assert.Equal(t, tok, s[DefaultTokenKey])
	assert.Equal(t, strconv.FormatInt(c.now.Unix()+600, 10), s[DefaultExpiryKey])
	assert.True(t, g.Validate(s, nil, tok))
}

func TestGenerateReplacesPreviousToken(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := MapSession{}

	first, err := g.Generate(s)
	require.NoError(t, err)
	second, err := g.Generate(s)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.False(t, g.Validate(s, nil, first))
	assert.True(t, g.Validate(s, nil, second))
}

func TestGenerateRandomFailure(t *testing.T) {
	g := newTestGuard(newClock(), Config{Rand: errReader{}})
	s := MapSession{}

	_, err := g.Generate(s)
	require.ErrorIs(t, err, ErrRandomness)
	assert.Empty(t, s, "nothing may be written when randomness fails")
}

func TestTokenBytesFloor(t *testing.T) {
	g := newTestGuard(newClock(), Config{TokenBytes: 8})
	tok, err := g.Issue(MapSession{})
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	g = newTestGuard(newClock(), Config{TokenBytes: 48})
	tok, err = g.Issue(MapSession{})
	require.NoError(t, err)
	assert.Len(t, tok, 96)
}

func TestRetrieveOrCreate(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := MapSession{}

	tok, err := g.RetrieveOrCreate(s)
	require.NoError(t, err)
	assert.Regexp(t, hexToken, tok)

	again, err := g.RetrieveOrCreate(s)
	require.NoError(t, err)
	assert.Equal(t, tok, again, "existing token must not be regenerated")

	issued, err := g.Issue(s)
	require.NoError(t, err)
	assert.NotEqual(t, tok, issued)
}

func TestDelete(t *testing.T) {
	obs := &countingObserver{}
	g := newTestGuard(newClock(), Config{Observer: obs})
	s := MapSession{"other": "kept"}

	tok, err := g.Generate(s)
	require.NoError(t, err)
	require.NoError(t, g.Delete(s))

	assert.Equal(t, MapSession{"other": "kept"}, s)
	assert.False(t, g.Validate(s, nil, tok))

	// deleting again is a no-op
	require.NoError(t, g.Delete(s))
	assert.Equal(t, 1, obs.issued)
	assert.Equal(t, 2, obs.deleted)
}

func TestResetInvalidatesOldToken(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := MapSession{}

	old, err := g.Generate(s)
	require.NoError(t, err)
	fresh, err := g.Reset(s)
	require.NoError(t, err)

	assert.False(t, g.Validate(s, nil, old))
	assert.True(t, g.Validate(s, nil, fresh))
}

func TestValidateMismatch(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := MapSession{}
	tok, err := g.Generate(s)
	require.NoError(t, err)

	for _, candidate := range []string{"", "x", tok[:63], tok + "0", "A" + tok[1:]} {
		assert.False(t, g.Validate(s, nil, candidate), "candidate %q", candidate)
	}
	assert.Equal(t, ReasonMissing, g.Inspect(s, nil, ""))
	assert.Equal(t, ReasonMismatch, g.Inspect(s, nil, "nope"))
}

func TestValidateCaseSensitive(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := MapSession{DefaultTokenKey: "AbCd"}
	assert.True(t, g.Validate(s, nil, "AbCd"))
	assert.False(t, g.Validate(s, nil, "abcd"))
}

func TestValidateWithoutToken(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	assert.Equal(t, ReasonMissing, g.Inspect(MapSession{}, nil, "anything"))
}

func TestValidateExpiry(t *testing.T) {
	c := newClock()
	g := newTestGuard(c, Config{ExpiryMinutes: 5})
	s := MapSession{}
	tok, err := g.Generate(s)
	require.NoError(t, err)

	c.Advance(5*time.Minute - time.Second)
	assert.True(t, g.Validate(s, nil, tok))

	c.Advance(time.Second)
	assert.Equal(t, ReasonExpired, g.Inspect(s, nil, tok))

	c.Advance(time.Hour)
	assert.False(t, g.Validate(s, nil, tok))
}

func TestSetExpiryMinutesZero(t *testing.T) {
	c := newClock()
	g := newTestGuard(c, Config{})
	g.SetExpiryMinutes(0)
	assert.Equal(t, 0, g.ExpiryMinutes())

	s := MapSession{}
	tok, err := g.Generate(s)
	require.NoError(t, err)
	assert.False(t, g.Validate(s, nil, tok))
}

func TestSetExpiryMinutesNotRetroactive(t *testing.T) {
	c := newClock()
	g := newTestGuard(c, Config{})
	s := MapSession{}
	tok, err := g.Generate(s)
	require.NoError(t, err)

	g.SetExpiryMinutes(1)
	c.Advance(2 * time.Minute)
	assert.True(t, g.Validate(s, nil, tok), "stored expiry keeps the lifetime it was issued with")
}

func TestMissingExpiry(t *testing.T) {
	s := MapSession{DefaultTokenKey: "tok"}

	g := newTestGuard(newClock(), Config{})
	assert.True(t, g.Validate(s, nil, "tok"))

	strict := newTestGuard(newClock(), Config{RequireExpiry: true})
	assert.Equal(t, ReasonExpired, strict.Inspect(s, nil, "tok"))
}

func TestCorruptExpiry(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := MapSession{DefaultTokenKey: "tok", DefaultExpiryKey: "soon"}
	assert.Equal(t, ReasonExpired, g.Inspect(s, nil, "tok"))
}

func TestOriginCheck(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := MapSession{}
	tok, err := g.Generate(s)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header map[string]string
		want   Reason
	}{
		{"no headers", nil, ReasonOK},
		{"same referer", map[string]string{"Referer": "https://myapp.example/form"}, ReasonOK},
		{"referer case", map[string]string{"Referer": "https://MyApp.Example/form"}, ReasonOK},
		{"evil referer", map[string]string{"Referer": "https://evil.example/x"}, ReasonOrigin},
		{"same origin", map[string]string{"Origin": "https://myapp.example"}, ReasonOK},
		{"evil origin wins over referer", map[string]string{"Origin": "https://evil.example", "Referer": "https://myapp.example/"}, ReasonOrigin},
		{"null origin", map[string]string{"Origin": "null"}, ReasonOrigin},
		{"port differs", map[string]string{"Referer": "https://myapp.example:8443/"}, ReasonOrigin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := fakeRequest{header: tc.header, host: "myapp.example"}
			assert.Equal(t, tc.want, g.Inspect(s, r, tok))
		})
	}
}

func TestOriginAllowedHostAndRequire(t *testing.T) {
	s := MapSession{DefaultTokenKey: "tok"}

	g := newTestGuard(newClock(), Config{AllowedHost: "app.example"})
	r := fakeRequest{header: map[string]string{"Referer": "https://app.example/"}, host: "internal:8080"}
	assert.True(t, g.Validate(s, r, "tok"))

	strict := newTestGuard(newClock(), Config{RequireOrigin: true})
	assert.Equal(t, ReasonOrigin, strict.Inspect(s, fakeRequest{host: "app.example"}, "tok"))
	assert.Equal(t, ReasonOrigin, strict.Inspect(s, nil, "tok"))
}

func TestValidateIsReadOnly(t *testing.T) {
	c := newClock()
	g := newTestGuard(c, Config{})
	s := MapSession{}
	tok, err := g.Generate(s)
	require.NoError(t, err)

	before := MapSession{}
	for k, v := range s {
		before[k] = v
	}
	for i := 0; i < 5; i++ {
		assert.True(t, g.Validate(s, nil, tok))
		assert.False(t, g.Validate(s, nil, "wrong"))
	}
	assert.Equal(t, before, s)
}

func TestExtractPriority(t *testing.T) {
	g := newTestGuard(newClock(), Config{})

	r := fakeRequest{
		post:   map[string]string{"_token": "body"},
		query:  map[string]string{"_token": "query"},
		header: map[string]string{"X-CSRF-TOKEN": "header"},
	}
	tok, ok := g.Extract(r)
	assert.True(t, ok)
	assert.Equal(t, "body", tok)

	r.post = nil
	tok, _ = g.Extract(r)
	assert.Equal(t, "query", tok)

	r.query = nil
	tok, _ = g.Extract(r)
	assert.Equal(t, "header", tok)

	r.header = nil
	_, ok = g.Extract(r)
	assert.False(t, ok)
}

func TestExtractEmptyCarrierWins(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	r := fakeRequest{
		post:  map[string]string{"_token": ""},
		query: map[string]string{"_token": "query"},
	}
	_, ok := g.Extract(r)
	assert.False(t, ok)
}

func TestExtractSanitizes(t *testing.T) {
	g := newTestGuard(newClock(), Config{FieldName: "csrf"})
	r := fakeRequest{query: map[string]string{"csrf": "ab\x00c\x7fdé\n"}}
	tok, ok := g.Extract(r)
	assert.True(t, ok)
	assert.Equal(t, "abcd", tok)
}

func TestCheckRequest(t *testing.T) {
	obs := &countingObserver{}
	g := newTestGuard(newClock(), Config{Observer: obs})
	s := MapSession{}
	tok, err := g.Generate(s)
	require.NoError(t, err)

	// body beats query even when only the query is right
	r := fakeRequest{
		post:  map[string]string{"_token": "stale"},
		query: map[string]string{"_token": tok},
		host:  "myapp.example",
	}
	assert.False(t, g.CheckRequest(s, r))

	r.post = map[string]string{"_token": tok}
	assert.True(t, g.CheckRequest(s, r))

	assert.False(t, g.CheckRequest(s, fakeRequest{host: "myapp.example"}))

	assert.Equal(t, []Reason{ReasonMismatch, ReasonOK, ReasonMissing}, obs.checked)
}

type failingSession struct{ MapSession }

func (failingSession) Get(string) (string, bool, error) { return "", false, errors.New("store down") }

func TestSessionErrors(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := failingSession{MapSession{}}

	assert.Equal(t, ReasonSession, g.Inspect(s, nil, "tok"))
	_, err := g.RetrieveOrCreate(s)
	assert.Error(t, err)
}

type txSession struct {
	MapSession
	updates int
}

func (t *txSession) Update(fn func(tx Session) error) error {
	t.updates++
	staged := MapSession{}
	for k, v := range t.MapSession {
		staged[k] = v
	}
	if err := fn(staged); err != nil {
		return err
	}
	t.MapSession = staged
	return nil
}

func TestTransactionalSession(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := &txSession{MapSession: MapSession{}}

	tok, err := g.Generate(s)
	require.NoError(t, err)
	assert.Equal(t, 1, s.updates)
	assert.True(t, g.Validate(s, nil, tok))

	require.NoError(t, g.Delete(s))
	assert.Equal(t, 2, s.updates)
	assert.Empty(t, s.MapSession)
}

// expiryWriteFailSession accepts the token slot but refuses the expiry slot.
type expiryWriteFailSession struct{ MapSession }

func (s expiryWriteFailSession) Set(key, value string) error {
	if key == DefaultExpiryKey {
		return errors.New("disk full")
	}
	return s.MapSession.Set(key, value)
}

func TestGeneratePartialWriteLeavesNoToken(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := expiryWriteFailSession{MapSession{DefaultExpiryKey: "1"}}

	tok, err := g.Generate(s)
	require.Error(t, err)
	assert.Empty(t, tok)
	assert.NotContains(t, s.MapSession, DefaultTokenKey)
	assert.NotContains(t, s.MapSession, DefaultExpiryKey)

	// the half-written token must not come back from the session
	_, err = g.RetrieveOrCreate(s)
	require.Error(t, err)
	assert.NotContains(t, s.MapSession, DefaultTokenKey)
}

func TestGeneratePartialWriteDoesNotValidate(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := expiryWriteFailSession{MapSession{}}

	var stored string
	_, err := g.Generate(recordingSession{s, &stored})
	require.Error(t, err)
	require.NotEmpty(t, stored)
	assert.False(t, g.Validate(s, nil, stored))
}

// recordingSession captures the last token written through it.
type recordingSession struct {
	Session
	token *string
}

func (r recordingSession) Set(key, value string) error {
	if key == DefaultTokenKey {
		*r.token = value
	}
	return r.Session.Set(key, value)
}

// snapshotSession serves reads only through Snapshot.
type snapshotSession struct {
	failingSession
	snapshots int
}

func (s *snapshotSession) Snapshot() (Session, error) {
	s.snapshots++
	return s.MapSession, nil
}

func TestValidateUsesSnapshot(t *testing.T) {
	c := newClock()
	g := newTestGuard(c, Config{})
	s := &snapshotSession{failingSession: failingSession{MapSession{}}}
	tok, err := g.Generate(s.MapSession)
	require.NoError(t, err)

	assert.True(t, g.Validate(s, nil, tok))
	assert.Equal(t, 1, s.snapshots)

	c.Advance(11 * time.Minute)
	assert.Equal(t, ReasonExpired, g.Inspect(s, nil, tok))
	assert.Equal(t, 2, s.snapshots)
}

type brokenSnapshotSession struct{ MapSession }

func (brokenSnapshotSession) Snapshot() (Session, error) { return nil, errors.New("store down") }

func TestValidateSnapshotError(t *testing.T) {
	g := newTestGuard(newClock(), Config{})
	s := brokenSnapshotSession{MapSession{}}
	tok, err := g.Generate(s)
	require.NoError(t, err)
	assert.Equal(t, ReasonSession, g.Inspect(s, nil, tok))
}

func TestCustomSlots(t *testing.T) {
	g := newTestGuard(newClock(), Config{TokenKey: "tk", ExpiryKey: "tx"})
	s := MapSession{}
	tok, err := g.Generate(s)
	require.NoError(t, err)
	assert.Equal(t, tok, s["tk"])
	assert.Contains(t, s, "tx")
	assert.NotContains(t, s, DefaultTokenKey)
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "ok", ReasonOK.String())
	assert.Equal(t, "origin", ReasonOrigin.String())
	assert.Equal(t, "unknown", Reason(42).String())
}
