package messages

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyftr/pkg/metrics"
)

func newTestRepository(t *testing.T, m *metrics.Metrics) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := OpenDB(ctx, filepath.Join(t.TempDir(), "data", "app.db"))
	require.NoError(t, err)

	repo := NewRepository(db, m)
	require.NoError(t, repo.Migrate(ctx))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func strPtr(s string) *string {
	return &s
}

func testMessage(id, from, ts string) Message {
	return Message{
		MessageID:  id,
		FromMSISDN: from,
		ToMSISDN:   "+14155550100",
		TS:         ts,
		Text:       strPtr("text of " + id),
		CreatedAt:  "2025-01-15T10:00:00.000000Z",
	}
}

func messageIDs(msgs []Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.MessageID)
	}
	return ids
}

func TestSQLiteRepository_InsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	first := testMessage("m1", "+911", "2025-01-15T10:00:00Z")
	outcome, err := repo.Insert(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	second := first
	second.Text = strPtr("different")
	second.FromMSISDN = "+922"
	outcome, err = repo.Insert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	result, err := repo.Query(ctx, Filter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, first, result.Messages[0])
}

func TestSQLiteRepository_NullText(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	msg := testMessage("m1", "+911", "2025-01-15T10:00:00Z")
	msg.Text = nil
	_, err := repo.Insert(ctx, msg)
	require.NoError(t, err)

	result, err := repo.Query(ctx, Filter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Nil(t, result.Messages[0].Text)

	result, err = repo.Query(ctx, Filter{Query: strPtr("text")}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, result.Total)
}

func TestSQLiteRepository_ConcurrentInsertSameID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	const n = 20
	outcomes := make(chan Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := testMessage("race", "+911", "2025-01-15T10:00:00Z")
			msg.Text = strPtr(fmt.Sprintf("attempt %d", i))
			outcome, err := repo.Insert(ctx, msg)
			assert.NoError(t, err)
			outcomes <- outcome
		}(i)
	}
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[OutcomeCreated])
	assert.Equal(t, n-1, counts[OutcomeDuplicate])
}

func TestSQLiteRepository_PaginationIsStable(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	var want []string
	for i := 0; i < 23; i++ {
		id := fmt.Sprintf("m%02d", i)
		// Pairs share a timestamp so message_id must break the tie.
		ts := fmt.Sprintf("2025-01-15T10:%02d:00Z", i/2)
		_, err := repo.Insert(ctx, testMessage(id, "+911", ts))
		require.NoError(t, err)
		want = append(want, id)
	}

	var got []string
	for offset := 0; ; offset += 5 {
		page, err := repo.Query(ctx, Filter{}, 5, offset)
		require.NoError(t, err)
		assert.Equal(t, 23, page.Total)
		if len(page.Messages) == 0 {
			break
		}
		got = append(got, messageIDs(page.Messages)...)
	}

	assert.Equal(t, want, got)
}

func TestSQLiteRepository_OrderByTimestampThenID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	for _, m := range []Message{
		testMessage("c", "+911", "2025-01-15T10:00:00Z"),
		testMessage("a", "+911", "2025-01-15T11:00:00Z"),
		testMessage("b", "+911", "2025-01-15T10:00:00Z"),
	} {
		_, err := repo.Insert(ctx, m)
		require.NoError(t, err)
	}

	result, err := repo.Query(ctx, Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, messageIDs(result.Messages))
}

func TestSQLiteRepository_FilterConjunction(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	fixture := []Message{
		testMessage("m1", "+911", "2025-01-15T09:00:00Z"),
		testMessage("m2", "+911", "2025-01-15T10:00:00Z"),
		testMessage("m3", "+911", "2025-01-15T11:00:00Z"),
		testMessage("m4", "+922", "2025-01-15T09:00:00Z"),
		testMessage("m5", "+922", "2025-01-15T10:00:00Z"),
		testMessage("m6", "+922", "2025-01-15T11:00:00Z"),
	}
	fixture[1].Text = strPtr("Hello World")
	fixture[4].Text = strPtr("say HELLO")
	for _, m := range fixture {
		_, err := repo.Insert(ctx, m)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "none", filter: Filter{}, want: []string{"m1", "m4", "m2", "m5", "m3", "m6"}},
		{name: "from", filter: Filter{From: strPtr("+911")}, want: []string{"m1", "m2", "m3"}},
		{name: "since inclusive", filter: Filter{Since: strPtr("2025-01-15T10:00:00Z")}, want: []string{"m2", "m5", "m3", "m6"}},
		{name: "from and since", filter: Filter{From: strPtr("+922"), Since: strPtr("2025-01-15T10:00:00Z")}, want: []string{"m5", "m6"}},
		{name: "q case insensitive", filter: Filter{Query: strPtr("hello")}, want: []string{"m2", "m5"}},
		{name: "all three", filter: Filter{From: strPtr("+911"), Since: strPtr("2025-01-15T10:00:00Z"), Query: strPtr("WORLD")}, want: []string{"m2"}},
		{name: "no match", filter: Filter{From: strPtr("+933")}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.Query(ctx, tt.filter, 100, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, messageIDs(result.Messages))
			assert.Equal(t, len(tt.want), result.Total)
		})
	}
}

func TestSQLiteRepository_TotalIgnoresPagination(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	for i := 0; i < 5; i++ {
		_, err := repo.Insert(ctx, testMessage(fmt.Sprintf("m%d", i), "+911", "2025-01-15T10:00:00Z"))
		require.NoError(t, err)
	}

	result, err := repo.Query(ctx, Filter{}, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Len(t, result.Messages, 1)
}

func TestSQLiteRepository_Stats(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	fixture := []Message{
		testMessage("a1", "+911", "2025-01-15T10:00:00Z"),
		testMessage("a2", "+911", "2025-01-15T12:00:00Z"),
		testMessage("a3", "+911", "2025-01-15T08:00:00Z"),
		testMessage("b1", "+922", "2025-01-15T11:00:00Z"),
		testMessage("b2", "+922", "2025-01-16T09:00:00Z"),
		testMessage("c1", "+900", "2025-01-14T23:59:59Z"),
		testMessage("d1", "+933", "2025-01-15T10:30:00Z"),
	}
	for _, m := range fixture {
		_, err := repo.Insert(ctx, m)
		require.NoError(t, err)
	}

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.TotalMessages)
	assert.Equal(t, 4, stats.SendersCount)
	assert.Equal(t, []SenderCount{
		{From: "+911", Count: 3},
		{From: "+922", Count: 2},
		{From: "+900", Count: 1},
		{From: "+933", Count: 1},
	}, stats.MessagesPerSender)

	sum := 0
	for _, sc := range stats.MessagesPerSender {
		sum += sc.Count
	}
	assert.Equal(t, stats.TotalMessages, sum)

	require.NotNil(t, stats.FirstMessageTS)
	require.NotNil(t, stats.LastMessageTS)
	assert.Equal(t, "2025-01-14T23:59:59Z", *stats.FirstMessageTS)
	assert.Equal(t, "2025-01-16T09:00:00Z", *stats.LastMessageTS)
}

func TestSQLiteRepository_StatsEmpty(t *testing.T) {
	repo := newTestRepository(t, nil)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalMessages)
	assert.Zero(t, stats.SendersCount)
	assert.NotNil(t, stats.MessagesPerSender)
	assert.Empty(t, stats.MessagesPerSender)
	assert.Nil(t, stats.FirstMessageTS)
	assert.Nil(t, stats.LastMessageTS)
}

func TestSQLiteRepository_StatsTopSendersLimited(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	for i := 0; i < 12; i++ {
		_, err := repo.Insert(ctx, testMessage(fmt.Sprintf("m%d", i), fmt.Sprintf("+9%02d", i), "2025-01-15T10:00:00Z"))
		require.NoError(t, err)
	}

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.SendersCount)
	require.Len(t, stats.MessagesPerSender, 10)
	assert.Equal(t, "+900", stats.MessagesPerSender[0].From)
	assert.Equal(t, "+909", stats.MessagesPerSender[9].From)
}

func TestSQLiteRepository_PingAndMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(ctx, filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	repo := NewRepository(db, nil)
	defer repo.Close()

	assert.ErrorIs(t, repo.Ping(ctx), ErrSchemaMissing)

	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx))
	assert.NoError(t, repo.Ping(ctx))
}

func TestSQLiteRepository_RecordsQueryMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	repo := newTestRepository(t, m)

	_, err := repo.Insert(ctx, testMessage("m1", "+911", "2025-01-15T10:00:00Z"))
	require.NoError(t, err)
	_, err = repo.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseQueriesTotal.WithLabelValues("insert", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseQueriesTotal.WithLabelValues("stats", "success")))
}
