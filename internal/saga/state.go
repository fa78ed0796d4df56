package saga

import (
	"encoding/json"
	"strings"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
)

// Phase is the orchestrator-level position in the order lifecycle.
type Phase string

const (
	PhaseStarted         Phase = "STARTED"
	PhaseOrderResolved   Phase = "ORDER_RESOLVED"
	PhaseAwaitingFinance Phase = "AWAITING_FINANCE"
	PhaseFinanceResolved Phase = "FINANCE_RESOLVED"
	PhaseAwaitingDisp    Phase = "AWAITING_DISPATCH"
	PhaseDispatchDone    Phase = "DISPATCH_DONE"
	PhaseAwaitingDeliv   Phase = "AWAITING_DELIVERY"
	PhaseDelivered       Phase = "DELIVERED"
	PhaseCanceled        Phase = "CANCELED"
	PhaseFailed          Phase = "FAILED"
)

// Terminal reports whether the phase admits no further progress.
func (p Phase) Terminal() bool {
	return p == PhaseDelivered || p == PhaseCanceled || p == PhaseFailed
}

// Signal kinds accepted by a running saga.
const (
	SignalInitiateFinance  = "initiate_finance"
	SignalApproveFinance   = "approve_finance"
	SignalRejectFinance    = "reject_finance"
	SignalInitiateDispatch = "initiate_dispatch"
	SignalConfirmDelivery  = "confirm_delivery"
	SignalCancelOrder      = "cancel_order"
)

// Sub-process names used in the aggregate status snapshot.
const (
	SubOrder    = "Order"
	SubFinance  = "Finance"
	SubDispatch = "Dispatch-Delivery"
)

// Signal is an external event addressed to one saga instance. The run loop
// consumes nothing beyond the kind and, for finance decisions, the actor.
type Signal struct {
	Kind  string `json:"kind"`
	Actor string `json:"actor,omitempty"`
}

// Decision is a buffered finance approve/reject signal.
type Decision struct {
	Approved bool   `json:"approved"`
	Actor    string `json:"actor"`
}

// StartPayload is the journal payload of the start entry.
type StartPayload struct {
	OrderID string `json:"order_id"`
}

// stepRecord is the journaled outcome of one recordable step (an await or an
// activity invocation).
type stepRecord struct {
	Payload json.RawMessage
	Err     string
}

// State is the replayable in-memory state of one saga. Every field is a pure
// function of the ordered journal: signals bump counters and buffers, steps
// land in Steps keyed by their deterministic name.
type State struct {
	OrderID string
	Phase   Phase

	// Signal counters and buffers, consumed positionally by the run loop so
	// that a replayed run pairs each round with the same signal it saw live.
	FinanceInits     int
	Decisions        []Decision
	DispatchInits    int
	DeliveryConfirms int
	Canceled         bool

	// Last order status the saga committed through an activity.
	OrderStatus domain.OrderStatus

	// Steps maps a deterministic step key to its recorded outcome.
	Steps map[string]stepRecord

	Completed bool
	Outcome   string
}

// NewState creates the initial state for a saga.
func NewState(orderID string) *State {
	return &State{
		OrderID:     orderID,
		Phase:       PhaseStarted,
		OrderStatus: domain.StatusPending,
		Steps:       make(map[string]stepRecord),
	}
}

// ApplySignal folds an accepted signal into the state. Duplicate or stale
// signals only grow counters; the run loop consumes them positionally, so
// re-delivery is harmless.
func (s *State) ApplySignal(sig Signal) {
	switch sig.Kind {
	case SignalInitiateFinance:
		s.FinanceInits++
	case SignalApproveFinance:
		s.Decisions = append(s.Decisions, Decision{Approved: true, Actor: sig.Actor})
	case SignalRejectFinance:
		s.Decisions = append(s.Decisions, Decision{Approved: false, Actor: sig.Actor})
	case SignalInitiateDispatch:
		s.DispatchInits++
	case SignalConfirmDelivery:
		s.DeliveryConfirms++
	case SignalCancelOrder:
		s.Canceled = true
	}
}

// Replay rebuilds state from an ordered journal.
func Replay(entries []Entry) *State {
	state := NewState("")
	for _, e := range entries {
		switch e.Type {
		case EntryStart:
			var p StartPayload
			if err := json.Unmarshal(e.Payload, &p); err == nil {
				state.OrderID = p.OrderID
			}
		case EntrySignal:
			var sig Signal
			if err := json.Unmarshal(e.Payload, &sig); err == nil {
				state.ApplySignal(sig)
			}
		case EntryActivity:
			state.Steps[e.Name] = stepRecord{Payload: e.Payload, Err: e.Err}
			state.applyActivityStatus(e)
		case EntryCompleted:
			state.Completed = true
			state.Outcome = e.Name
			switch e.Name {
			case "delivered":
				state.OrderStatus = domain.StatusDelivered
			case "order canceled":
				state.OrderStatus = domain.StatusCanceled
			default:
				state.OrderStatus = domain.StatusFailed
			}
		}
	}
	return state
}

// applyActivityStatus folds a successful status-bearing activity into the
// last known order status, so queries against a replayed saga see the last
// committed status instead of the initial one.
func (s *State) applyActivityStatus(e Entry) {
	if e.Err != "" {
		return
	}
	var outcome struct {
		Result  json.RawMessage `json:"result"`
		ErrKind string          `json:"error_kind"`
	}
	if json.Unmarshal(e.Payload, &outcome) != nil || outcome.ErrKind != "" {
		return
	}

	switch {
	case strings.HasPrefix(e.Name, "initiate_finance"):
		s.OrderStatus = domain.StatusFinancePending
	case strings.HasPrefix(e.Name, "place_order"):
		var res domain.AllocationResult
		if json.Unmarshal(outcome.Result, &res) == nil && res.Status != "" {
			s.OrderStatus = res.Status
		}
	case strings.HasPrefix(e.Name, "resolve_finance"),
		strings.HasPrefix(e.Name, "dispatch#"),
		strings.HasPrefix(e.Name, "deliver#"):
		var status domain.OrderStatus
		if json.Unmarshal(outcome.Result, &status) == nil && status != "" {
			s.OrderStatus = status
		}
	}
}

// AggregateStatus is the per-sub-process status snapshot exposed to queries.
func (s *State) AggregateStatus() map[string]string {
	agg := map[string]string{
		SubOrder:    string(s.OrderStatus),
		SubFinance:  "NOT_STARTED",
		SubDispatch: "NOT_STARTED",
	}

	switch {
	case len(s.Decisions) > 0:
		last := s.Decisions[len(s.Decisions)-1]
		if last.Approved {
			agg[SubFinance] = domain.FinanceApproved
		} else {
			agg[SubFinance] = domain.FinanceRejected
		}
	case s.FinanceInits > 0:
		agg[SubFinance] = domain.FinancePending
	}

	switch s.Phase {
	case PhaseDispatchDone, PhaseAwaitingDeliv:
		agg[SubDispatch] = "DISPATCHED"
	case PhaseDelivered:
		agg[SubDispatch] = "DELIVERED"
	default:
		if s.DispatchInits > 0 {
			agg[SubDispatch] = "REQUESTED"
		}
	}

	agg["Saga"] = string(s.Phase)
	return agg
}
