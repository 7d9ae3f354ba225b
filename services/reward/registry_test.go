package reward

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"questline/pkg/errutil"
	"questline/services/notification"
	"questline/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type grantRecorder struct {
	mu     sync.Mutex
	grants []Rewardable
	refs   []string
	err    error
}

func (s *grantRecorder) Grant(_ context.Context, _ string, r Rewardable, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, r)
	s.refs = append(s.refs, ref)
	return s.err
}

type dispatchRecorder struct {
	mu       sync.Mutex
	payloads []notification.Payload
}

func (d *dispatchRecorder) Dispatch(_ context.Context, _ string, p notification.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p)
	return nil
}

func newTestNode(t *testing.T) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestRegisterAndResolve(t *testing.T) {
	db := testutil.NewTestDB(t, &Rewardable{})
	registry := NewRegistry(RegistryParams{DB: db})

	strategy := &grantRecorder{}
	require.NoError(t, registry.Register(RewardCoins, strategy))

	resolved, err := registry.Resolve(RewardCoins)
	require.NoError(t, err)
	require.Same(t, strategy, resolved)
}

func TestRegisterDuplicateType(t *testing.T) {
	db := testutil.NewTestDB(t, &Rewardable{})
	registry := NewRegistry(RegistryParams{DB: db})

	require.NoError(t, registry.Register(RewardCoins, &grantRecorder{}))

	err := registry.Register(RewardCoins, &grantRecorder{})
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusConflict, be.Status())
}

func TestResolveUnregisteredType(t *testing.T) {
	db := testutil.NewTestDB(t, &Rewardable{})
	registry := NewRegistry(RegistryParams{DB: db})

	_, err := registry.Resolve(RewardTitle)
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusInternal, be.Status())
}

func TestDistributeGrantsConfiguredRewards(t *testing.T) {
	db := testutil.NewTestDB(t, &Rewardable{})
	node := newTestNode(t)
	registry := NewRegistry(RegistryParams{DB: db})

	strategy := &grantRecorder{}
	require.NoError(t, registry.Register(RewardCoins, strategy))

	rw := &Rewardable{
		ID:         node.Generate().String(),
		SourceType: SourceMission,
		SourceID:   "mission-1",
		RewardType: RewardCoins,
		Amount:     25,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, db.Create(rw).Error)

	// configured on a different mission, must not be granted
	require.NoError(t, db.Create(&Rewardable{
		ID:         node.Generate().String(),
		SourceType: SourceMission,
		SourceID:   "mission-2",
		RewardType: RewardCoins,
		Amount:     99,
		CreatedAt:  time.Now(),
	}).Error)

	require.NoError(t, registry.Distribute(context.Background(), "user-1", Source{
		Type: SourceMission,
		ID:   "mission-1",
	}, "event-1"))

	require.Len(t, strategy.grants, 1)
	require.Equal(t, int64(25), strategy.grants[0].Amount)

	// per-rewardable reference derived from the event
	require.Equal(t, []string{"event-1:" + rw.ID}, strategy.refs)
}

func TestDistributeUnresolvableTypeFails(t *testing.T) {
	db := testutil.NewTestDB(t, &Rewardable{})
	node := newTestNode(t)
	registry := NewRegistry(RegistryParams{DB: db})

	require.NoError(t, db.Create(&Rewardable{
		ID:         node.Generate().String(),
		SourceType: SourceMission,
		SourceID:   "mission-1",
		RewardType: RewardTitle,
		RewardID:   "title-1",
		CreatedAt:  time.Now(),
	}).Error)

	err := registry.Distribute(context.Background(), "user-1", Source{
		Type: SourceMission,
		ID:   "mission-1",
	}, "event-1")
	require.Error(t, err)
}

func TestDistributeNoConfigurationIsNoop(t *testing.T) {
	db := testutil.NewTestDB(t, &Rewardable{})
	registry := NewRegistry(RegistryParams{DB: db})

	require.NoError(t, registry.Distribute(context.Background(), "user-1", Source{
		Type: SourceLevel,
		ID:   "level-1",
	}, "event-1"))
}

func TestDistributeStopsOnGrantError(t *testing.T) {
	db := testutil.NewTestDB(t, &Rewardable{})
	node := newTestNode(t)
	registry := NewRegistry(RegistryParams{DB: db})

	strategy := &grantRecorder{err: errors.New("grant failed")}
	require.NoError(t, registry.Register(RewardCoins, strategy))

	require.NoError(t, db.Create(&Rewardable{
		ID:         node.Generate().String(),
		SourceType: SourceMission,
		SourceID:   "mission-1",
		RewardType: RewardCoins,
		Amount:     10,
		CreatedAt:  time.Now(),
	}).Error)

	err := registry.Distribute(context.Background(), "user-1", Source{
		Type: SourceMission,
		ID:   "mission-1",
	}, "event-1")
	require.Error(t, err)
}

func TestTitleStrategyGrantIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t, &Title{}, &UserTitle{})
	node := newTestNode(t)
	notifier := &dispatchRecorder{}

	strategy := NewTitleStrategy(TitleStrategyParams{DB: db, Node: node, Notifier: notifier})

	title := &Title{
		ID:        node.Generate().String(),
		Name:      "Collector",
		Slug:      "collector",
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(title).Error)

	r := Rewardable{RewardID: title.ID}
	require.NoError(t, strategy.Grant(context.Background(), "user-1", r, "event-1"))
	require.NoError(t, strategy.Grant(context.Background(), "user-1", r, "event-2"))

	var owned int64
	require.NoError(t, db.Model(&UserTitle{}).
		Where("user_id = ? AND title_id = ?", "user-1", title.ID).
		Count(&owned).Error)
	require.Equal(t, int64(1), owned)

	require.Len(t, notifier.payloads, 1)
	require.Equal(t, "You earned a new title: Collector!", notifier.payloads[0].Title)
}

func TestTitleStrategyMissingTitle(t *testing.T) {
	db := testutil.NewTestDB(t, &Title{}, &UserTitle{})
	strategy := NewTitleStrategy(TitleStrategyParams{DB: db, Node: newTestNode(t), Notifier: &dispatchRecorder{}})

	err := strategy.Grant(context.Background(), "user-1", Rewardable{ID: "rw-1", RewardID: "missing"}, "event-1")
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusInternal, be.Status())
}

func TestExperienceStrategyDelegatesToAwarder(t *testing.T) {
	var gotUser, gotRef string
	var gotAmount int64

	strategy := NewExperienceStrategy(awarderFunc(func(_ context.Context, userID string, amount int64, ref string) error {
		gotUser = userID
		gotAmount = amount
		gotRef = ref
		return nil
	}))

	require.NoError(t, strategy.Grant(context.Background(), "user-1", Rewardable{Amount: 75}, "event-1"))
	require.Equal(t, "user-1", gotUser)
	require.Equal(t, int64(75), gotAmount)
	require.Equal(t, "event-1", gotRef)
}

func TestExperienceStrategyRejectsNonPositiveAmount(t *testing.T) {
	strategy := NewExperienceStrategy(awarderFunc(func(context.Context, string, int64, string) error {
		t.Fatal("awarder must not be called")
		return nil
	}))

	err := strategy.Grant(context.Background(), "user-1", Rewardable{Amount: 0}, "event-1")
	require.Error(t, err)
}

type awarderFunc func(ctx context.Context, userID string, amount int64, reference string) error

func (f awarderFunc) AwardExperienceOnce(ctx context.Context, userID string, amount int64, reference string) error {
	return f(ctx, userID, amount, reference)
}
