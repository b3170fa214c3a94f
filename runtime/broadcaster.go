package runtime

import (
	"log/slog"

	"secure-chat/protocol"

	"github.com/samber/lo"
)

// Report summarizes one fan-out.
// Delivered counts the recipients of the original payload, Evicted lists
// every user dropped while delivering it and the follow-up notices.
type Report struct {
	Delivered int
	Evicted   []string
}

// Broadcaster relays frames to registered sessions.
// Each peer gets a single write attempt; a failing peer never affects the others.
type Broadcaster struct {
	registry *Registry
	log      *slog.Logger
}

func NewBroadcaster(registry *Registry, log *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: log}
}

type outbound struct {
	payload  string
	exclude  *Session
	presence bool
}

// Broadcast sends payload to every registered session but exclude.
// Failed peers are deregistered and closed after the fan-out, then a leave
// line per evicted user and one presence update are sent to the survivors.
func (b *Broadcaster) Broadcast(payload string, exclude *Session) Report {
	return b.run(outbound{payload: payload, exclude: exclude})
}

// Presence sends the current online list to every registered session.
func (b *Broadcaster) Presence() Report {
	return b.run(outbound{presence: true})
}

// Leave announces a departure already removed from the registry, then
// refreshes presence.
func (b *Broadcaster) Leave(username string) Report {
	report := b.run(outbound{payload: protocol.LeftLine(username)})
	presence := b.Presence()
	report.Evicted = append(report.Evicted, presence.Evicted...)
	return report
}

// run drains a queue of frames. Evictions append leave lines and a trailing
// presence update; it terminates since every eviction shrinks the registry.
func (b *Broadcaster) run(first outbound) Report {
	var report Report
	queue := []outbound{first}
	presencePending := false

	for i := 0; len(queue) > 0; i++ {
		next := queue[0]
		queue = queue[1:]

		payload := next.payload
		if next.presence {
			payload = protocol.UsersList(b.registry.Snapshot())
		}

		delivered, evicted := b.fanOut(payload, next.exclude)
		if i == 0 {
			report.Delivered = delivered
		}
		if len(evicted) > 0 {
			report.Evicted = append(report.Evicted, evicted...)
			queue = append(queue, lo.Map(evicted, func(username string, _ int) outbound {
				return outbound{payload: protocol.LeftLine(username)}
			})...)
			presencePending = true
		}
		if len(queue) == 0 && presencePending {
			presencePending = false
			queue = append(queue, outbound{presence: true})
		}
	}
	return report
}

func (b *Broadcaster) fanOut(payload string, exclude *Session) (int, []string) {
	attempted := 0
	failures := b.registry.ForEachExcept(exclude, func(session *Session) error {
		attempted++
		return session.Send(payload)
	})
	if len(failures) == 0 {
		return attempted, nil
	}

	evicted := b.registry.RemoveAll(lo.Map(failures, func(f PeerSendError, _ int) *Session { return f.Session }))
	for _, failure := range failures {
		b.log.Warn("Evicting unreachable peer",
			"session_id", failure.Session.ID,
			"username", failure.Username,
			"error", failure.Err)
		_ = failure.Session.Close()
	}
	return attempted - len(failures), evicted
}
