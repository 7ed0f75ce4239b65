// Package hclogsink adapts memcache.EventSink onto a github.com/hashicorp/go-hclog
// logger.
package hclogsink

import (
	"github.com/cacheflow/memcache"
	"github.com/hashicorp/go-hclog"
)

// Sink logs every memcache event through an hclog.Logger at a level
// matching its severity: connect failures, keep-alive failures and closes
// with a cause at Warn, everything else at Debug or Trace.
type Sink struct {
	log hclog.Logger
}

// New wraps log. A nil log falls back to hclog.Default().
func New(log hclog.Logger) *Sink {
	if log == nil {
		log = hclog.Default()
	}
	return &Sink{log: log.Named("memcache")}
}

func (s *Sink) StartedConnecting(id memcache.ConnID) {
	s.log.Trace("connecting", "conn", id)
}

func (s *Sink) ConnectSucceeded(id memcache.ConnID) {
	s.log.Debug("connected", "conn", id)
}

func (s *Sink) ConnectFailed(id memcache.ConnID, cause error) {
	s.log.Warn("connect failed", "conn", id, "error", cause)
}

func (s *Sink) ConnectionLeased(id memcache.ConnID) {
	s.log.Trace("leased", "conn", id)
}

func (s *Sink) ConnectionReleased(id memcache.ConnID) {
	s.log.Trace("released", "conn", id)
}

func (s *Sink) ConnectionClosing(id memcache.ConnID) {
	s.log.Debug("closing", "conn", id)
}

func (s *Sink) ConnectionClosed(id memcache.ConnID, cause error) {
	if cause != nil {
		s.log.Warn("closed", "conn", id, "error", cause)
		return
	}
	s.log.Debug("closed", "conn", id)
}

func (s *Sink) KeepAliveTriggered(id memcache.ConnID) {
	s.log.Trace("keepalive triggered", "conn", id)
}

func (s *Sink) KeepAliveSucceeded(id memcache.ConnID) {
	s.log.Trace("keepalive ok", "conn", id)
}

func (s *Sink) KeepAliveFailed(id memcache.ConnID, cause error) {
	s.log.Warn("keepalive failed", "conn", id, "error", cause)
}

func (s *Sink) RequestQueueDepthChanged(n int) {
	s.log.Trace("queue depth changed", "depth", n)
}

func (s *Sink) ConnectionUtilizationChanged(id memcache.ConnID, inFlight, capacity int) {
	s.log.Trace("utilization changed", "conn", id, "in_flight", inFlight, "capacity", capacity)
}

func (s *Sink) Warn(msg string, keyvals ...any) {
	s.log.Warn(msg, keyvals...)
}

var _ memcache.EventSink = (*Sink)(nil)
