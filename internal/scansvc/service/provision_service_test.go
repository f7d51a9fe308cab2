package service

import (
	"context"
	"testing"

	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/strcr/nfc-meals/internal/scansvc/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvision_CreateCard(t *testing.T) {
	repo := newFakeRepo()
	svc := NewProvisionService(repo.repos())
	ctx := context.Background()

	card, err := svc.CreateCard(ctx, "aa:11:bb:22")
	require.NoError(t, err)
	assert.Equal(t, "AA11BB22", card.CardUID)

	_, err = svc.CreateCard(ctx, "AA11BB22")
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = svc.CreateCard(ctx, "not-hex")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateCard(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProvision_Grant(t *testing.T) {
	repo := newFakeRepo()
	svc := NewProvisionService(repo.repos())
	ctx := context.Background()

	_, err := svc.CreateCard(ctx, "AA11BB22")
	require.NoError(t, err)

	created, err := svc.Grant(ctx, GrantRequest{SerialNumber: "AA11BB22", Date: "2024-06-01", Type: "Lunch"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "2024-06-01", created[0].Date)
	assert.Equal(t, "lunch", created[0].Type)

	_, err = svc.Grant(ctx, GrantRequest{SerialNumber: "AA11BB22", Date: "2024-06-01", Type: "lunch"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	// the range skips the day granted above and crosses the month boundary
	created, err = svc.Grant(ctx, GrantRequest{SerialNumber: "AA11BB22", Date: "2024-05-30", Type: "lunch", Days: 5})
	require.NoError(t, err)
	require.Len(t, created, 4)
	assert.Equal(t, "2024-05-30", created[0].Date)
	assert.Equal(t, "2024-05-31", created[1].Date)
	assert.Equal(t, "2024-06-02", created[2].Date)
	assert.Equal(t, "2024-06-03", created[3].Date)

	all, err := svc.Allowances(ctx, "aa:11:bb:22")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestProvision_GrantRejects(t *testing.T) {
	repo := newFakeRepo()
	svc := NewProvisionService(repo.repos())
	ctx := context.Background()

	_, err := svc.Grant(ctx, GrantRequest{SerialNumber: "FFFF", Date: "2024-06-01", Type: "lunch"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	for _, req := range []GrantRequest{
		{Date: "2024-06-01", Type: "lunch"},
		{SerialNumber: "FFFF", Date: "06/01/2024", Type: "lunch"},
		{SerialNumber: "FFFF", Date: "2024-06-01"},
		{SerialNumber: "FFFF", Date: "2024-06-01", Type: "lunch", Days: 400},
	} {
		_, err := svc.Grant(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", req)
	}
}

func TestProvision_AllowancesShowUsage(t *testing.T) {
	repo := newFakeRepo()
	repos := repo.repos()
	prov := NewProvisionService(repos)
	scan := NewScanService(repos, NewEventService(repo), nil)
	ctx := context.Background()

	_, err := prov.CreateCard(ctx, "AA11BB22")
	require.NoError(t, err)
	_, err = prov.Grant(ctx, GrantRequest{SerialNumber: "AA11BB22", Date: "2024-06-01", Type: "lunch", Days: 2})
	require.NoError(t, err)

	out, err := scan.Scan(ctx, lunch())
	require.NoError(t, err)
	require.True(t, out.Success)

	all, err := prov.Allowances(ctx, "AA11BB22")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[0].UsedAt)
	assert.Nil(t, all[1].UsedAt)
}

func TestEventService_ListNewestFirst(t *testing.T) {
	repo := newFakeRepo()
	svc := NewEventService(repo)
	ctx := context.Background()

	for i := 0; i < store.EventFeedLimit+5; i++ {
		_, err := svc.Success(ctx, "tick")
		require.NoError(t, err)
	}
	last, err := svc.Fail(ctx, "last")
	require.NoError(t, err)
	assert.Equal(t, ErrorPrefix+"last", last.Message)

	events, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, events, store.EventFeedLimit)
	assert.Equal(t, last.ID, events[0].ID)
	assert.Greater(t, events[0].ID, events[1].ID)
}

type recordingNotifier struct{ got []string }

func (r *recordingNotifier) EventAppended(ev *models.Event) { r.got = append(r.got, ev.Message) }

func TestEventService_NotifiesAfterAppend(t *testing.T) {
	repo := newFakeRepo()
	svc := NewEventService(repo)
	n := &recordingNotifier{}
	svc.SetNotifier(n)

	_, err := svc.Append(context.Background(), "hello")
	require.NoError(t, err)

	repo.failOn["CreateEvent"] = true
	_, err = svc.Append(context.Background(), "lost")
	assert.ErrorIs(t, err, ErrStorageFailure)

	assert.Equal(t, []string{"hello"}, n.got)
}
