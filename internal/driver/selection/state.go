package selection

import "backend-transitportal/internal/domain"

// State is the whole bus selection screen. It only changes through Reduce.
type State struct {
	Loaded     bool
	Buses      []domain.Bus
	DriverType domain.ServiceType // empty until chosen
	Filtered   []domain.Bus
	BusID      int64 // 0 until chosen; always a member of Filtered
	Committing bool
	LastError  string
}

// SelectedBus returns the chosen bus from the filtered list.
func (s State) SelectedBus() (domain.Bus, bool) {
	if s.BusID == 0 {
		return domain.Bus{}, false
	}
	for _, b := range s.Filtered {
		if b.ID == s.BusID {
			return b, true
		}
	}
	return domain.Bus{}, false
}

type Event interface{ event() }

type BusesLoaded struct{ Buses []domain.Bus }
type TypeSelected struct{ Type domain.ServiceType }
type BusSelected struct{ BusID int64 }
type CommitStarted struct{}
type CommitFinished struct{ Err error }

func (BusesLoaded) event()    {}
func (TypeSelected) event()   {}
func (BusSelected) event()    {}
func (CommitStarted) event()  {}
func (CommitFinished) event() {}

// Reduce applies one event. It never mutates the slices of s.
func Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case BusesLoaded:
		s.Loaded = true
		s.Buses = append([]domain.Bus(nil), ev.Buses...)
		s.Filtered = filter(s.Buses, s.DriverType)
		if _, ok := s.SelectedBus(); !ok {
			s.BusID = 0
		}
	case TypeSelected:
		if !ev.Type.Valid() {
			return s
		}
		if ev.Type != s.DriverType {
			s.BusID = 0
		}
		s.DriverType = ev.Type
		s.Filtered = filter(s.Buses, s.DriverType)
	case BusSelected:
		if s.DriverType == "" {
			return s
		}
		for _, b := range s.Filtered {
			if b.ID == ev.BusID {
				s.BusID = ev.BusID
				break
			}
		}
	case CommitStarted:
		s.Committing = true
		s.LastError = ""
	case CommitFinished:
		s.Committing = false
		if ev.Err != nil {
			s.LastError = ev.Err.Error()
		}
	}
	return s
}

func filter(buses []domain.Bus, t domain.ServiceType) []domain.Bus {
	if t == "" {
		return nil
	}
	out := make([]domain.Bus, 0, len(buses))
	for _, b := range buses {
		if b.ServiceType == t {
			out = append(out, b)
		}
	}
	return out
}
