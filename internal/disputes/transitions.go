package disputes

import (
	"fmt"

	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

var allowedTransitions = map[enums.DisputeStatus][]enums.DisputeStatus{
	enums.DisputeStatusOpen:              {enums.DisputeStatusSupplierResponded, enums.DisputeStatusResolved},
	enums.DisputeStatusSupplierResponded: {enums.DisputeStatusResolved},
}

// CanTransition reports whether a dispute may move from one status to another.
func CanTransition(from, to enums.DisputeStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func alreadyResolved() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "dispute is already resolved")
}

func disputeStateError(from, to enums.DisputeStatus) error {
	if from == enums.DisputeStatusResolved {
		return alreadyResolved()
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("dispute cannot move from %s to %s", from, to))
}
