package yozoon

import (
	"github.com/rovshanmuradov/yozoon/internal/blockchain/solbc"
	"github.com/rovshanmuradov/yozoon/internal/sale"
)

// ProgramError maps an Anchor error reported by the program onto the
// matching sale error. Framework errors (codes below 6000) and unknown codes
// come back unchanged.
func ProgramError(anchorErr *solbc.AnchorError) error {
	if anchorErr == nil {
		return nil
	}
	if anchorErr.Code >= 0 {
		if e, ok := sale.ErrorFromCode(sale.Code(anchorErr.Code)); ok {
			return e.Wrap(anchorErr)
		}
	}
	return anchorErr
}

// ErrorFromAnalysis extracts the program error from an analysed failure,
// or returns nil when the failure carries none.
func ErrorFromAnalysis(a *solbc.Analysis) error {
	if a == nil {
		return nil
	}
	return ProgramError(a.AnchorError)
}
