package link

import (
	"fmt"

	"tickcore/core"
	"tickcore/diag"
)

func (c *Client) call(name string, args ...uint32) (Reply, error) {
	cmd, ok := diag.Lookup(name)
	if !ok {
		return Reply{}, fmt.Errorf("unknown command %q", name)
	}
	return c.Call(cmd, args...)
}

// Clock reads the board's current tick
func (c *Client) Clock() (core.Tick, error) {
	r, err := c.call("get_clock")
	if err != nil {
		return 0, err
	}
	return diag.DecodeClock(&r.Args)
}

// Uptime reads the time since boot
func (c *Client) Uptime() (diag.Uptime, error) {
	r, err := c.call("get_uptime")
	if err != nil {
		return diag.Uptime{}, err
	}
	return diag.DecodeUptime(&r.Args)
}

// Stats reads the driver counters
func (c *Client) Stats() (core.Stats, error) {
	r, err := c.call("get_stats")
	if err != nil {
		return core.Stats{}, err
	}
	return diag.DecodeStats(&r.Args)
}

// Config reads the driver configuration
func (c *Client) Config() (diag.Config, error) {
	r, err := c.call("get_config")
	if err != nil {
		return diag.Config{}, err
	}
	return diag.DecodeConfig(&r.Args)
}

// Timing fetches the whole timing trace, one page per call
func (c *Client) Timing() ([]core.TimingEvent, error) {
	var events []core.TimingEvent
	offset := uint32(0)
	for {
		r, err := c.call("dump_timing", offset)
		if err != nil {
			return nil, err
		}
		page, err := diag.DecodeTiming(&r.Args)
		if err != nil {
			return nil, err
		}
		events = append(events, page.Events...)
		offset += uint32(len(page.Events))
		if len(page.Events) == 0 || offset >= page.Total {
			return events, nil
		}
	}
}
