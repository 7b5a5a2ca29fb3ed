package registry

import (
	"github.com/dukex/stepflow/pkg/nodes/branch"
	"github.com/dukex/stepflow/pkg/nodes/httprequest"
	"github.com/dukex/stepflow/pkg/nodes/log"
	"github.com/dukex/stepflow/pkg/nodes/set"
	switchnode "github.com/dukex/stepflow/pkg/nodes/switch"
	"github.com/dukex/stepflow/pkg/nodes/transform"
	"github.com/dukex/stepflow/pkg/nodes/wait"
)

// RegisterDefaultSteps registers the built-in control and data steps plus http_request. Browser steps are registered by
// the embedding application or loaded as plugins.
func (r *Registry) RegisterDefaultSteps() {
	r.RegisterStep(log.NewLogStepFactory())
	r.RegisterStep(wait.NewWaitStepFactory())
	r.RegisterStep(set.NewSetStepFactory())
	r.RegisterStep(branch.NewBranchStepFactory())
	r.RegisterStep(switchnode.NewSwitchStepFactory())
	r.RegisterStep(transform.NewTransformStepFactory())
	r.RegisterStep(httprequest.NewHTTPRequestStepFactory())
}
