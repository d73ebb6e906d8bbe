package service

// Observer receives operational counters. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveReconcile(op string, err error)
	ObserveMutation(kind string)
	ObserveGesture(outcome string)
	WorkspaceOpened()
	WorkspaceClosed()
}

type nopObserver struct{}

func (nopObserver) ObserveReconcile(string, error) {}
func (nopObserver) ObserveMutation(string)         {}
func (nopObserver) ObserveGesture(string)          {}
func (nopObserver) WorkspaceOpened()               {}
func (nopObserver) WorkspaceClosed()               {}
