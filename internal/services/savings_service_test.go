package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/models"
	"github.com/mkasongo/kembo-wallet/internal/repository/memory"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savingsFixture struct {
	accounts *memory.AccountStore
	ledger   *memory.Ledger
	goals    *memory.GoalStore
	redis    *fakeRedis
	notifier *recordingNotifier
	svc      *SavingsService
	clock    time.Time
}

func newSavingsFixture() *savingsFixture {
	f := &savingsFixture{
		accounts: memory.NewAccountStore(),
		ledger:   memory.NewLedger(),
		goals:    memory.NewGoalStore(),
		redis:    newFakeRedis(),
		notifier: &recordingNotifier{},
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewSavingsService(f.accounts, f.ledger, f.goals, f.redis, f.notifier)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *savingsFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *savingsFixture) seedAccount(t *testing.T, balance int64) string {
	t.Helper()
	const id = "owner-1"
	_, err := f.accounts.Ensure(context.Background(), id, "CDF")
	require.NoError(t, err)
	if balance > 0 {
		_, _, err = f.accounts.AdjustBalance(context.Background(), id, balance, 0)
		require.NoError(t, err)
	}
	return id
}

func (f *savingsFixture) seedGoal(t *testing.T, owner string, target, freqAmount int64) *models.SavingsGoal {
	t.Helper()
	goal, err := f.svc.CreateGoal(context.Background(), owner, CreateGoalRequest{
		Name:            "moto",
		TargetAmount:    target,
		Frequency:       models.FrequencyDaily,
		FrequencyAmount: freqAmount,
	})
	require.NoError(t, err)
	return goal
}

func (f *savingsFixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	acc, err := f.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Balance
}

func (f *savingsFixture) goal(t *testing.T, id string) *models.SavingsGoal {
	t.Helper()
	goal, err := f.goals.GetByID(context.Background(), id)
	require.NoError(t, err)
	return goal
}

func TestCreateGoalValidation(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 0)

	cases := []CreateGoalRequest{
		{Name: "", TargetAmount: 100, Frequency: models.FrequencyDaily, FrequencyAmount: 10},
		{Name: "g", TargetAmount: 0, Frequency: models.FrequencyDaily, FrequencyAmount: 10},
		{Name: "g", TargetAmount: 100, Frequency: models.FrequencyDaily, FrequencyAmount: -1},
		{Name: "g", TargetAmount: 100, Frequency: "hourly", FrequencyAmount: 10},
	}
	for _, req := range cases {
		_, err := f.svc.CreateGoal(context.Background(), owner, req)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)
	}
}

func TestCreateGoalInheritsAccountCurrency(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 0)
	goal := f.seedGoal(t, owner, 1000, 100)
	assert.Equal(t, "CDF", goal.Currency)
	assert.Equal(t, models.GoalActive, goal.Status)
}

func TestRunContributionsDebitsDueGoals(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 1000, 100)

	// Not due yet: nothing moves.
	f.svc.RunContributions(context.Background())
	assert.Equal(t, int64(500), f.balance(t, owner))

	f.advance(25 * time.Hour)
	f.svc.RunContributions(context.Background())

	assert.Equal(t, int64(400), f.balance(t, owner))
	updated := f.goal(t, goal.ID)
	assert.Equal(t, int64(100), updated.CurrentAmount)
	assert.Equal(t, f.clock, updated.LastContributionAt)

	records, _, err := f.ledger.History(context.Background(), owner, 10, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.KindSavingsContribution, records[0].Kind)
	assert.Equal(t, int64(100), records[0].Amount)

	assert.Len(t, f.notifier.byKind(models.NotifyGoalContribution), 1)
}

func TestRunContributionsInsufficientFundsRetriesWithinPeriod(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 10)
	goal := f.seedGoal(t, owner, 1000, 100)

	f.advance(25 * time.Hour)
	f.svc.RunContributions(context.Background())

	// Balance and goal untouched, owner told why.
	assert.Equal(t, int64(10), f.balance(t, owner))
	assert.Equal(t, int64(0), f.goal(t, goal.ID).CurrentAmount)
	assert.Len(t, f.notifier.byKind(models.NotifyInsufficientFunds), 1)

	// Funds arrive; the next run within the same period succeeds.
	_, _, err := f.accounts.AdjustBalance(context.Background(), owner, 200, 0)
	require.NoError(t, err)
	f.svc.RunContributions(context.Background())

	assert.Equal(t, int64(110), f.balance(t, owner))
	assert.Equal(t, int64(100), f.goal(t, goal.ID).CurrentAmount)
}

func TestRunContributionsGuardBlocksOverlappingRun(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 1000, 100)
	f.advance(25 * time.Hour)

	stored := f.goal(t, goal.ID)
	guard := fmt.Sprintf("goal:%s:run:%d", goal.ID, stored.LastContributionAt.Unix())
	ok, err := f.redis.SetNX(context.Background(), guard, "1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	f.svc.RunContributions(context.Background())
	assert.Equal(t, int64(500), f.balance(t, owner))
	assert.Equal(t, int64(0), f.goal(t, goal.ID).CurrentAmount)
}

func TestContributionClampsAndCompletesGoal(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 150, 100)

	f.advance(25 * time.Hour)
	f.svc.RunContributions(context.Background())
	assert.Equal(t, int64(100), f.goal(t, goal.ID).CurrentAmount)

	f.advance(25 * time.Hour)
	f.svc.RunContributions(context.Background())

	updated := f.goal(t, goal.ID)
	assert.Equal(t, int64(150), updated.CurrentAmount)
	assert.Equal(t, models.GoalCompleted, updated.Status)
	assert.Equal(t, int64(350), f.balance(t, owner))
	assert.Len(t, f.notifier.byKind(models.NotifyGoalCompleted), 1)

	// Completed goals drop out of the schedule.
	f.advance(25 * time.Hour)
	f.svc.RunContributions(context.Background())
	assert.Equal(t, int64(350), f.balance(t, owner))
}

func TestAddToGoalManually(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 150, 10)

	// Clamped to the 150 remaining.
	updated, err := f.svc.AddToGoal(context.Background(), owner, goal.ID, 200, "")
	require.NoError(t, err)
	assert.Equal(t, int64(150), updated.CurrentAmount)
	assert.Equal(t, models.GoalCompleted, updated.Status)
	assert.Equal(t, int64(350), f.balance(t, owner))
}

func TestAddToGoalOwnerOnly(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 150, 10)

	_, err := f.svc.AddToGoal(context.Background(), "someone-else", goal.ID, 50, "")
	require.ErrorIs(t, err, pkgerrors.ErrPermissionDenied)
}

func TestWithdrawFromGoal(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 100, 10)

	// Not completed yet: locked.
	_, err := f.svc.WithdrawFromGoal(context.Background(), owner, goal.ID, 10, "")
	require.ErrorIs(t, err, pkgerrors.ErrGoalNotCompleted)

	_, err = f.svc.AddToGoal(context.Background(), owner, goal.ID, 100, "")
	require.NoError(t, err)
	assert.Equal(t, int64(400), f.balance(t, owner))

	updated, err := f.svc.WithdrawFromGoal(context.Background(), owner, goal.ID, 60, "")
	require.NoError(t, err)
	assert.Equal(t, int64(40), updated.CurrentAmount)
	assert.Equal(t, int64(460), f.balance(t, owner))

	records, _, err := f.ledger.History(context.Background(), owner, 10, "")
	require.NoError(t, err)
	assert.Equal(t, models.KindSavingsWithdrawal, records[0].Kind)
}

func TestAddToGoalIdempotentReplay(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 1000, 10)

	first, err := f.svc.AddToGoal(context.Background(), owner, goal.ID, 100, "add-key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), first.CurrentAmount)
	assert.Equal(t, int64(400), f.balance(t, owner))

	// A client retry with the same key replays the first result
	// instead of contributing again.
	second, err := f.svc.AddToGoal(context.Background(), owner, goal.ID, 100, "add-key-1")
	require.NoError(t, err)
	assert.Equal(t, first.CurrentAmount, second.CurrentAmount)
	assert.Equal(t, int64(400), f.balance(t, owner))
	assert.Equal(t, int64(100), f.goal(t, goal.ID).CurrentAmount)

	records, _, err := f.ledger.History(context.Background(), owner, 10, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWithdrawFromGoalIdempotentReplay(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 100, 10)

	_, err := f.svc.AddToGoal(context.Background(), owner, goal.ID, 100, "")
	require.NoError(t, err)
	assert.Equal(t, int64(400), f.balance(t, owner))

	first, err := f.svc.WithdrawFromGoal(context.Background(), owner, goal.ID, 60, "wd-key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), first.CurrentAmount)
	assert.Equal(t, int64(460), f.balance(t, owner))

	second, err := f.svc.WithdrawFromGoal(context.Background(), owner, goal.ID, 60, "wd-key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), second.CurrentAmount)
	assert.Equal(t, int64(460), f.balance(t, owner))
	assert.Equal(t, int64(40), f.goal(t, goal.ID).CurrentAmount)
}

// ttlRecordingRedis notes the TTL of every write so guard lease
// behavior can be asserted.
type ttlRecordingRedis struct {
	*fakeRedis
	writes []redisWrite
}

type redisWrite struct {
	op  string
	key string
	ttl time.Duration
}

func (r *ttlRecordingRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	r.writes = append(r.writes, redisWrite{"set", key, ttl})
	return r.fakeRedis.Set(ctx, key, value, ttl)
}

func (r *ttlRecordingRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	r.writes = append(r.writes, redisWrite{"setnx", key, ttl})
	return r.fakeRedis.SetNX(ctx, key, value, ttl)
}

func TestRunContributionsExtendsGuardAfterCommit(t *testing.T) {
	f := newSavingsFixture()
	recording := &ttlRecordingRedis{fakeRedis: f.redis}
	f.svc = NewSavingsService(f.accounts, f.ledger, f.goals, recording, f.notifier)
	f.svc.now = func() time.Time { return f.clock }

	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 1000, 100)
	f.advance(25 * time.Hour)
	f.svc.RunContributions(context.Background())
	require.Equal(t, int64(400), f.balance(t, owner))

	// The guard is claimed with a short lease so a crash before the
	// contribution commits frees the goal quickly; the lease is only
	// extended once the period is committed.
	guard := fmt.Sprintf("goal:%s:run:%d", goal.ID, goal.LastContributionAt.Unix())
	var claimed, extended bool
	for _, w := range recording.writes {
		if w.key != guard {
			continue
		}
		switch w.op {
		case "setnx":
			claimed = true
			assert.Equal(t, runClaimTTL, w.ttl)
		case "set":
			extended = true
			assert.Equal(t, runGuardTTL, w.ttl)
		}
	}
	assert.True(t, claimed)
	assert.True(t, extended)
}

func TestPausedGoalSkipsSchedule(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 1000, 100)

	require.NoError(t, f.svc.PauseGoal(context.Background(), owner, goal.ID))
	f.advance(25 * time.Hour)
	f.svc.RunContributions(context.Background())
	assert.Equal(t, int64(500), f.balance(t, owner))

	require.NoError(t, f.svc.ResumeGoal(context.Background(), owner, goal.ID))
	f.svc.RunContributions(context.Background())
	assert.Equal(t, int64(400), f.balance(t, owner))
}

func TestDeleteGoalRefundsAccumulated(t *testing.T) {
	f := newSavingsFixture()
	owner := f.seedAccount(t, 500)
	goal := f.seedGoal(t, owner, 1000, 100)

	_, err := f.svc.AddToGoal(context.Background(), owner, goal.ID, 200, "")
	require.NoError(t, err)
	assert.Equal(t, int64(300), f.balance(t, owner))

	require.NoError(t, f.svc.DeleteGoal(context.Background(), owner, goal.ID))
	assert.Equal(t, int64(500), f.balance(t, owner))

	_, err = f.goals.GetByID(context.Background(), goal.ID)
	require.ErrorIs(t, err, pkgerrors.ErrGoalNotFound)
}
