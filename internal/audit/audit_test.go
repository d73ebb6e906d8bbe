package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/pullsheet/internal/db"
	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/logging"
	"github.com/vbonduro/pullsheet/internal/store"
)

type stubPublisher struct {
	published []*domain.Interaction
	err       error
}

func (p *stubPublisher) Publish(_ context.Context, in *domain.Interaction) error {
	p.published = append(p.published, in)
	return p.err
}

type stubArchiver struct {
	key  string
	body []byte
	err  error
}

func (a *stubArchiver) Archive(_ context.Context, key string, body []byte) (string, error) {
	a.key, a.body = key, body
	return "mem://" + key, a.err
}

// clock returns successive minutes so list order is deterministic.
func clock() func() time.Time {
	t := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newTestService(t *testing.T, pub Publisher) *Service {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return NewService(store.NewInteractionStore(d), Options{Publisher: pub, Logger: logging.Discard(), Now: clock()})
}

var baker = domain.Actor{ID: "u1", Email: "baker@example.com"}

func TestRecordAndList(t *testing.T) {
	pub := &stubPublisher{}
	var recorded []string
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	defer d.Close()
	svc := NewService(store.NewInteractionStore(d), Options{
		Publisher: pub, Logger: logging.Discard(), Now: clock(),
		OnRecord: func(action string) { recorded = append(recorded, action) },
	})
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, baker, domain.ActionLogin, nil))
	require.NoError(t, svc.Record(ctx, baker, domain.ActionSendSummary, map[string]any{"pulls": []string{"Bagel"}}))

	rows, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.ActionSendSummary, rows[0].Action)
	assert.JSONEq(t, `{"pulls":["Bagel"]}`, string(rows[0].Payload))
	assert.JSONEq(t, `{}`, string(rows[1].Payload))
	assert.Equal(t, "baker@example.com", rows[1].UserEmail)

	require.Len(t, pub.published, 2)
	assert.Equal(t, []string{domain.ActionLogin, domain.ActionSendSummary}, recorded)
}

func TestRecordPublishFailureIsNotFatal(t *testing.T) {
	svc := newTestService(t, &stubPublisher{err: errors.New("no servers")})

	assert.NoError(t, svc.Record(context.Background(), baker, domain.ActionLogout, nil))
}

func TestRecordUnencodablePayload(t *testing.T) {
	svc := newTestService(t, nil)

	err := svc.Record(context.Background(), baker, domain.ActionSendSummary, make(chan int))
	assert.Error(t, err)
}

func TestListFilters(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	other := domain.Actor{ID: "u2", Email: "other@example.com"}

	require.NoError(t, svc.Record(ctx, baker, domain.ActionLogin, nil))
	require.NoError(t, svc.Record(ctx, other, domain.ActionLogin, nil))
	require.NoError(t, svc.Record(ctx, baker, domain.ActionLogout, nil))

	rows, err := svc.List(ctx, Filter{Email: "baker@example.com"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = svc.List(ctx, Filter{Action: domain.ActionLogin})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = svc.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ActionLogout, rows[0].Action)
}

func TestClear(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, baker, domain.ActionLogin, nil))

	n, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExport(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, baker, domain.ActionLogin, nil))
	require.NoError(t, svc.Record(ctx, baker, domain.ActionSendSummary, map[string]string{"note": `say "hi"`}))

	var buf bytes.Buffer
	n, err := svc.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, CSVHeader, lines[0])
	assert.Equal(t, `"2026-05-01T06:02:00.000Z","baker@example.com","send_summary","{""note"":""say \""hi\""""}"`, lines[1])
	assert.Equal(t, `"2026-05-01T06:01:00.000Z","baker@example.com","login","{}"`, lines[2])
}

func TestArchive(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, baker, domain.ActionLogin, nil))

	a := &stubArchiver{}
	loc, n, err := svc.Archive(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "mem://audit/logs-20260501T060200Z.csv", loc)
	assert.True(t, strings.HasPrefix(string(a.body), CSVHeader+"\n"))
}

func TestArchiveFailure(t *testing.T) {
	svc := newTestService(t, nil)

	_, _, err := svc.Archive(context.Background(), &stubArchiver{err: errors.New("denied")})
	assert.Error(t, err)
}

func TestArchiveKey(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 30, 5, 0, time.FixedZone("PDT", -7*3600))
	assert.Equal(t, "audit/logs-20261018T163005Z.csv", ArchiveKey(at))
}
