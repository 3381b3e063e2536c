package oracle

import (
	"context"
	"fmt"
)

// ScriptedOracle replays canned responses in order. Tests use it to
// drive sessions without a network.
type ScriptedOracle struct {
	Responses []*FixResponse
	Errs      []error
	Requests  []*FixRequest

	next int
}

func (o *ScriptedOracle) Name() string { return "scripted" }

func (o *ScriptedOracle) ProposeFix(ctx context.Context, req *FixRequest) (*FixResponse, error) {
	o.Requests = append(o.Requests, req)
	i := o.next
	o.next++
	if i < len(o.Errs) && o.Errs[i] != nil {
		return nil, o.Errs[i]
	}
	if i >= len(o.Responses) {
		return nil, fmt.Errorf("scripted oracle exhausted after %d responses", len(o.Responses))
	}
	return o.Responses[i], nil
}
