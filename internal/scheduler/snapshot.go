package scheduler

import (
	"sort"
	"time"

	"penpal/internal/domain"
)

// StreamStatus is one account's scheduling state as last observed.
type StreamStatus struct {
	Account   string
	Cron      string
	Excluded  bool
	NextFire  time.Time
	LastFire  time.Time
	Fires     uint64
	Failures  uint64
	LastError string
}

type Snapshot struct {
	Timezone        string
	DispatchTimeout time.Duration
	Streams         []StreamStatus
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	tz := s.cfg.Timezone
	if tz == "" && s.loc != nil {
		tz = s.loc.String()
	}
	timeout := s.cfg.dispatchTimeout()
	s.mu.Unlock()

	s.smu.Lock()
	streams := make([]StreamStatus, 0, len(s.status))
	for _, st := range s.status {
		streams = append(streams, *st)
	}
	s.smu.Unlock()

	sort.Slice(streams, func(i, j int) bool { return streams[i].Account < streams[j].Account })
	return Snapshot{Timezone: tz, DispatchTimeout: timeout, Streams: streams}
}

// resetStatus rebuilds the status table for a fresh stream set. Counters
// start over on restart.
func (s *Service) resetStatus(accounts []domain.Account) {
	s.smu.Lock()
	s.status = make(map[string]*StreamStatus, len(accounts))
	for _, a := range accounts {
		s.status[a.Name] = &StreamStatus{Account: a.Name, Cron: a.CronExpr}
	}
	s.smu.Unlock()
}

func (s *Service) statusArmed(name string, next time.Time) {
	s.smu.Lock()
	if st := s.status[name]; st != nil {
		st.NextFire = next
	}
	s.smu.Unlock()
}

func (s *Service) statusFired(name string, at time.Time) {
	s.smu.Lock()
	if st := s.status[name]; st != nil {
		st.LastFire = at
		st.Fires++
	}
	s.smu.Unlock()
}

func (s *Service) statusResult(name string, err error) {
	s.smu.Lock()
	if st := s.status[name]; st != nil {
		if err != nil {
			st.Failures++
			st.LastError = err.Error()
		} else {
			st.LastError = ""
		}
	}
	s.smu.Unlock()
}

func (s *Service) statusExclude(name string, err error) {
	s.smu.Lock()
	if st := s.status[name]; st != nil {
		st.Excluded = true
		st.NextFire = time.Time{}
		if err != nil {
			st.LastError = err.Error()
		}
	}
	s.smu.Unlock()
}
