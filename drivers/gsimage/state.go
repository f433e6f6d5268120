package gsimage

// state of a StoreImage request
type state int

const (
	stateIdle state = iota
	stateArmed
	stateDirectionSwitched
	statePIOHead
	stateDMATransfer
	statePIOTail
	stateTerminated
)

var stateNames = [...]string{
	"idle", "armed", "direction-switched", "pio-head",
	"dma-transfer", "pio-tail", "terminated",
}

func (s state) String() string { return stateNames[s] }

type event int

const (
	evNone        event = iota
	evStarted           // both channels started the request
	evRendezvous        // prologue sent and GS finished
	evSwitched          // bus direction is GS to host
	evPIODone           // fragment moved
	evPIOFailed         // FIFO stayed empty
	evSegmentDone       // segment received or cursor rewound
	evTimeout           // watchdog fired or request stopped
)

var eventNames = [...]string{
	"none", "started", "rendezvous", "switched",
	"pio-done", "pio-failed", "segment-done", "timeout",
}

func (e event) String() string { return eventNames[e] }

type action int

const (
	actArmWatchdog action = iota
	actCancelWatchdog
	actPublishFinish
	actRevokeFinish
	actSendPrologue
	actSwitchToHost
	actPIOHead
	actRewindCursor
	actRecvSegment
	actPIOTail
	actForceBreak
	actResetFIFOs
	actRestoreBus
	actSendUnmask
	actReleaseSend
	actSucceed
	actFail
)

var (
	terminateOK = []action{
		actCancelWatchdog, actRestoreBus, actSendUnmask, actReleaseSend, actSucceed,
	}
	terminateFailed = []action{
		actCancelWatchdog, actRevokeFinish, actForceBreak, actResetFIFOs,
		actRestoreBus, actSendUnmask, actReleaseSend, actFail,
	}
)

// transition returns the state following s on ev and the actions to run, in
// order. more reports whether the receive cursor has a segment left. Events
// not expected in s are ignored. Terminated is final, so a request terminates
// exactly once.
func transition(s state, ev event, more bool) (state, []action) {
	if s == stateTerminated {
		return s, nil
	}
	if ev == evTimeout {
		return stateTerminated, terminateFailed
	}

	switch {
	case s == stateIdle && ev == evStarted:
		return stateArmed, []action{actArmWatchdog, actPublishFinish, actSendPrologue}
	case s == stateArmed && ev == evRendezvous:
		return stateDirectionSwitched, []action{actCancelWatchdog, actSwitchToHost}
	case s == stateDirectionSwitched && ev == evSwitched:
		return statePIOHead, []action{actPIOHead}
	case s == statePIOHead && ev == evPIODone:
		return stateDMATransfer, []action{actRewindCursor}
	case s == stateDMATransfer && ev == evSegmentDone && more:
		return stateDMATransfer, []action{actArmWatchdog, actRecvSegment}
	case s == stateDMATransfer && ev == evSegmentDone:
		return statePIOTail, []action{actCancelWatchdog, actPIOTail}
	case s == statePIOTail && ev == evPIODone:
		return stateTerminated, terminateOK
	case (s == statePIOHead || s == statePIOTail) && ev == evPIOFailed:
		return stateTerminated, terminateFailed
	}
	return s, nil
}
