package engine

import (
	"context"

	"github.com/caseflow/caseflow/pkg/models"
)

// CompletionPolicy is the hook point for the controlling-groups and
// assigned-users check. The permission decision itself lives in the API
// layer; the engine only invokes the hook before committing a completion.
type CompletionPolicy interface {
	Authorize(ctx context.Context, workItem *models.WorkItem, identity models.Identity) error
}

// AllowAll accepts every identity. It is the default policy.
type AllowAll struct{}

func (AllowAll) Authorize(_ context.Context, _ *models.WorkItem, _ models.Identity) error {
	return nil
}

// GroupMembership authorizes identities whose group appears in the work
// item's controlling groups, or whose username is among the assigned
// users. Work items without either constraint are open to everyone.
type GroupMembership struct{}

func (GroupMembership) Authorize(_ context.Context, workItem *models.WorkItem, identity models.Identity) error {
	if len(workItem.ControllingGroups) == 0 && len(workItem.AssignedUsers) == 0 {
		return nil
	}

	for _, group := range workItem.ControllingGroups {
		if group == identity.Group {
			return nil
		}
	}

	for _, user := range workItem.AssignedUsers {
		if user == identity.Username {
			return nil
		}
	}

	return ErrNotAuthorized
}
