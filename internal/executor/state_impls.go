package executor

// SubmittingState - handing the circuit to the service
type SubmittingState struct{}

func (s *SubmittingState) Name() string { return "submitting" }
func (s *SubmittingState) ToWaiting() *WaitingState {
	return &WaitingState{}
}
func (s *SubmittingState) ToPolling() *PollingState {
	return &PollingState{}
}
func (s *SubmittingState) ToSubmitFailed() *SubmitFailedState {
	return &SubmitFailedState{}
}

// WaitingState - blocked in the service's own wait primitive
type WaitingState struct{}

func (s *WaitingState) Name() string { return "waiting" }
func (s *WaitingState) ToCollecting() *CollectingState {
	return &CollectingState{}
}
func (s *WaitingState) ToFinalizing() *FinalizingState {
	return &FinalizingState{}
}
func (s *WaitingState) ToPolling() *PollingState {
	return &PollingState{}
}

// PollingState - explicit status loop bounded by the timeout
type PollingState struct{}

func (s *PollingState) Name() string { return "polling" }
func (s *PollingState) ToCollecting() *CollectingState {
	return &CollectingState{}
}
func (s *PollingState) ToFinalizing() *FinalizingState {
	return &FinalizingState{}
}

// CollectingState - fetching the result of a DONE job and scoring it
type CollectingState struct{}

func (s *CollectingState) Name() string { return "collecting" }
func (s *CollectingState) ToFinalizing() *FinalizingState {
	return &FinalizingState{}
}

// FinalizingState - assembling the record and appending it to the run log
type FinalizingState struct{}

func (s *FinalizingState) Name() string { return "finalizing" }
func (s *FinalizingState) ToLogged() *LoggedState {
	return &LoggedState{}
}

// LoggedState - terminal, the record is durable
type LoggedState struct{}

func (s *LoggedState) Name() string { return "logged" }

// SubmitFailedState - terminal, no job id was ever obtained
type SubmitFailedState struct{}

func (s *SubmitFailedState) Name() string { return "submit_failed" }
