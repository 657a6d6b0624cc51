package purchase_request

import "procura/internal/domain/workflow"

// DeriveRole returns what callerID may do with pr. The requestor always
// creates while the request is a draft; anyone else gets the stage role when
// listed in user_action, and view_only otherwise.
func DeriveRole(pr *PurchaseRequest, callerID string, stageRole Role) Role {
	if pr.Status == StatusDraft && pr.RequestorID == callerID {
		return workflow.RoleCreate
	}
	if !pr.UserAction.CanExecute(callerID) || !stageRole.IsValid() {
		return workflow.RoleViewOnly
	}
	return stageRole
}
