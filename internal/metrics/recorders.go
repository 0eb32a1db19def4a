package metrics

import "time"

// The methods below let packages depend on small interfaces instead of the
// collector itself.

func (c *Collector) AssignmentCreated()  { c.AssignmentsCreated.Inc() }
func (c *Collector) AssignmentEnded()    { c.AssignmentsEnded.Inc() }
func (c *Collector) AssignmentConflict() { c.AssignmentConflicts.Inc() }

func (c *Collector) LocationReported(err error) {
	if err != nil {
		c.LocationReportErrs.Inc()
		return
	}
	c.LocationReports.Inc()
}

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

func (c *Collector) TrackingSetActive(active bool) {
	if active {
		c.TrackingActive.Set(1)
		return
	}
	c.TrackingActive.Set(0)
}

func (c *Collector) SampleAccepted() { c.SamplesReceived.Inc() }
func (c *Collector) SampleDropped()  { c.SamplesDropped.Inc() }
func (c *Collector) LocationFailed() { c.LocationErrors.Inc() }

func (c *Collector) GatewayObserve(op string, d time.Duration, err error) {
	c.GatewayDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		c.GatewayFailures.WithLabelValues(op).Inc()
	}
}
