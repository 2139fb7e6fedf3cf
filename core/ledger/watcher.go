package ledger

import "sync"

// observer forwards the events to a channel. An event is dropped when the
// channel is full so that a slow observer never blocks the ledger.
type observer struct {
	ch chan Event
}

func (obs observer) notify(evt Event) {
	select {
	case obs.ch <- evt:
	default:
	}
}

// watcher keeps the list of observers of the ledger.
type watcher struct {
	sync.RWMutex

	observers map[observer]struct{}
}

func newWatcher() *watcher {
	return &watcher{
		observers: make(map[observer]struct{}),
	}
}

func (w *watcher) add(obs observer) {
	w.Lock()
	w.observers[obs] = struct{}{}
	w.Unlock()
}

func (w *watcher) remove(obs observer) {
	w.Lock()
	delete(w.observers, obs)
	w.Unlock()
}

func (w *watcher) notify(evt Event) {
	w.RLock()
	defer w.RUnlock()

	for obs := range w.observers {
		obs.notify(evt)
	}
}

func (w *watcher) len() int {
	w.RLock()
	defer w.RUnlock()

	return len(w.observers)
}
