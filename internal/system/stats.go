package system

import (
	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// Stats is a world resource refreshed at the end of every frame. Event
// counts cover the events readable this frame, i.e. those sent last frame.
type Stats struct {
	Frame         uint64
	Entities      int
	HealthChanged int
	Spawned       int
	Expired       int
	Died          int
	// Extinguished counts entities that lost Burning since the last frame,
	// including burning entities that were despawned.
	Extinguished  int

	TotalSpawned int
	TotalExpired int
	TotalDied    int
}

// StatsSystem gathers Stats and logs them every logEvery frames.
// Phase 4 (Last).
type StatsSystem struct {
	log      *zap.Logger
	logEvery uint64

	all     *ecs.Query
	changed *ecs.Query
	doused  *ecs.RemovedReader[component.Burning]
	spawned *ecs.ResRead[event.Queue[event.Spawned]]
	expired *ecs.ResRead[event.Queue[event.Expired]]
	died    *ecs.ResRead[event.Queue[event.Died]]
	stats   *ecs.ResWrite[Stats]
}

func NewStatsSystem(log *zap.Logger, logEvery uint64) *StatsSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsSystem{log: log, logEvery: logEvery}
}

func (s *StatsSystem) Name() string         { return NameStats }
func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhaseLast }

func (s *StatsSystem) Init(p *coresys.Params) error {
	w := p.World()
	var err error
	if s.all, err = p.Query(ecs.Read[component.Position](w)); err != nil {
		return err
	}
	if s.changed, err = p.Query(ecs.Read[component.Health](w), ecs.Changed[component.Health](w)); err != nil {
		return err
	}
	if s.doused, err = coresys.Removed[component.Burning](p); err != nil {
		return err
	}
	if s.spawned, err = coresys.ReadResource[event.Queue[event.Spawned]](p); err != nil {
		return err
	}
	if s.expired, err = coresys.ReadResource[event.Queue[event.Expired]](p); err != nil {
		return err
	}
	if s.died, err = coresys.ReadResource[event.Queue[event.Died]](p); err != nil {
		return err
	}
	s.stats, err = coresys.WriteResource[Stats](p)
	return err
}

func (s *StatsSystem) Update(ctx *coresys.Context) {
	st, ok := s.stats.Get()
	if !ok {
		return
	}
	st.Frame = ctx.Frame()
	st.Entities = s.all.Count()
	st.HealthChanged = s.changed.Count()
	st.Extinguished = s.doused.Len()
	st.Spawned = queueLen(s.spawned)
	st.Expired = queueLen(s.expired)
	st.Died = queueLen(s.died)
	st.TotalSpawned += st.Spawned
	st.TotalExpired += st.Expired
	st.TotalDied += st.Died

	if s.logEvery > 0 && ctx.Frame()%s.logEvery == 0 {
		s.log.Info("frame stats",
			zap.Uint64("frame", st.Frame),
			zap.Int("entities", st.Entities),
			zap.Int("health_changed", st.HealthChanged),
			zap.Int("spawned", st.Spawned),
			zap.Int("expired", st.Expired),
			zap.Int("died", st.Died),
			zap.Int("extinguished", st.Extinguished))
	}
}

func queueLen[E any](r *ecs.ResRead[event.Queue[E]]) int {
	q, ok := r.Get()
	if !ok {
		return 0
	}
	return q.Len()
}
