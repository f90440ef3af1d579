package ferrors

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	MetaDealID          = "deal_id"
	MetaOrgID           = "org_id"
	MetaActorID         = "actor_id"
	MetaActorRole       = "actor_role"
	MetaRequiredRole    = "required_role"
	MetaResourceType    = "resource_type"
	MetaResourceID      = "resource_id"
	MetaFromStage       = "from_stage"
	MetaToStage         = "to_stage"
	MetaFromStatus      = "from_status"
	MetaToStatus        = "to_status"
	MetaAmount          = "amount"
	MetaCurrency        = "currency"
	MetaExpectedVersion = "expected_version"
	MetaRole            = "role"
	MetaReason          = "reason"
	MetaStore           = "store"
	MetaAdapter         = "adapter"
	MetaDomain          = "domain"
	MetaTable           = "table"
	MetaOperation       = "operation"
	MetaScope           = "scope"
	MetaPath            = "path"
	MetaAttempt         = "attempt"
)

const (
	TextCodeAuthorizationDenied    = "AUTHORIZATION_DENIED"
	TextCodeOwnershipDenied        = "OWNERSHIP_DENIED"
	TextCodeRoleChangeDenied       = "ROLE_CHANGE_DENIED"
	TextCodeBackwardStageDenied    = "BACKWARD_STAGE_DENIED"
	TextCodeInvalidTransition      = "INVALID_STAGE_TRANSITION"
	TextCodeTerminalStatusLocked   = "TERMINAL_STATUS_LOCKED"
	TextCodeTerminalStageLocked    = "TERMINAL_STAGE_LOCKED"
	TextCodeWonRequiresAmount      = "WON_REQUIRES_AMOUNT"
	TextCodeNegativeAmount         = "NEGATIVE_AMOUNT"
	TextCodeUnsupportedCurrency    = "UNSUPPORTED_CURRENCY"
	TextCodeDealNotFound           = "DEAL_NOT_FOUND"
	TextCodeNotAMember             = "NOT_A_MEMBER"
	TextCodeVersionConflict        = "VERSION_CONFLICT"
	TextCodeInvalidRole            = "INVALID_ROLE"
	TextCodeInvalidStatus          = "INVALID_STATUS"
	TextCodeInvalidStage           = "INVALID_STAGE"
	TextCodeTitleRequired          = "TITLE_REQUIRED"
	TextCodeDealIDRequired         = "DEAL_ID_REQUIRED"
	TextCodeOwnerRequired          = "OWNER_REQUIRED"
	TextCodeInvalidPipeline        = "INVALID_PIPELINE"
	TextCodeInvalidPolicy          = "INVALID_POLICY"
	TextCodeDealStoreRequired      = "DEAL_STORE_REQUIRED"
	TextCodeActivitySinkRequired   = "ACTIVITY_SINK_REQUIRED"
	TextCodeMembershipRequired     = "MEMBERSHIP_LOOKUP_REQUIRED"
	TextCodeStoreRequired          = "STORE_REQUIRED"
	TextCodeResolverRequired       = "RESOLVER_REQUIRED"
	TextCodeSnapshotRequired       = "SNAPSHOT_REQUIRED"
	TextCodeScopeRequired          = "SCOPE_REQUIRED"
	TextCodePathRequired           = "PATH_REQUIRED"
	TextCodePathInvalid            = "PATH_INVALID"
	TextCodePreferencesRequired    = "PREFERENCES_STORE_REQUIRED"
	TextCodeScopeMetadataMissing   = "SCOPE_METADATA_MISSING"
	TextCodeAdapterFailed          = "ADAPTER_FAILED"
	TextCodeStoreReadFailed        = "STORE_READ_FAILED"
	TextCodeStoreWriteFailed       = "STORE_WRITE_FAILED"
	TextCodeActivityWriteFailed    = "ACTIVITY_WRITE_FAILED"
	TextCodeMembershipLookupFailed = "MEMBERSHIP_LOOKUP_FAILED"
	TextCodePolicyLookupFailed     = "POLICY_LOOKUP_FAILED"
)

// Categories that refine the go-errors set so callers can tell graph
// failures apart from business rule failures.
var (
	CategoryInvalidTransition = goerrors.CategoryBadInput.Extend("transition")
	CategoryBusinessInvariant = goerrors.CategoryValidation.Extend("invariant")
)

var (
	ErrAuthorizationDenied   = newSentinel(goerrors.CategoryAuthz, goerrors.CodeForbidden, TextCodeAuthorizationDenied, "insufficient permissions")
	ErrOwnershipDenied       = newSentinel(goerrors.CategoryAuthz, goerrors.CodeForbidden, TextCodeOwnershipDenied, "you don't have permission to modify this resource")
	ErrRoleChangeDenied      = newSentinel(goerrors.CategoryAuthz, goerrors.CodeForbidden, TextCodeRoleChangeDenied, "role change not allowed")
	ErrBackwardStageDenied   = newSentinel(goerrors.CategoryAuthz, goerrors.CodeForbidden, TextCodeBackwardStageDenied, "only admins and owners can move deal stage backward")
	ErrInvalidTransition     = newSentinel(CategoryInvalidTransition, goerrors.CodeBadRequest, TextCodeInvalidTransition, "invalid stage transition")
	ErrTerminalStatus        = newSentinel(CategoryBusinessInvariant, goerrors.CodeConflict, TextCodeTerminalStatusLocked, "cannot change status from terminal state")
	ErrTerminalStage         = newSentinel(CategoryBusinessInvariant, goerrors.CodeConflict, TextCodeTerminalStageLocked, "cannot change stage of a deal with terminal status")
	ErrWonRequiresAmount     = newSentinel(CategoryBusinessInvariant, goerrors.CodeConflict, TextCodeWonRequiresAmount, "amount must be greater than 0 to mark deal as won")
	ErrNegativeAmount        = newSentinel(CategoryBusinessInvariant, goerrors.CodeConflict, TextCodeNegativeAmount, "amount must not be negative")
	ErrUnsupportedCurrency   = newSentinel(CategoryBusinessInvariant, goerrors.CodeConflict, TextCodeUnsupportedCurrency, "currency is not supported")
	ErrDealNotFound          = newSentinel(goerrors.CategoryNotFound, goerrors.CodeNotFound, TextCodeDealNotFound, "deal not found")
	ErrNotAMember            = newSentinel(goerrors.CategoryNotFound, goerrors.CodeNotFound, TextCodeNotAMember, "user is not a member of this organization")
	ErrVersionConflict       = newSentinel(goerrors.CategoryConflict, goerrors.CodeConflict, TextCodeVersionConflict, "deal was modified concurrently")
	ErrInvalidRole           = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeInvalidRole, "invalid role")
	ErrInvalidStatus         = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeInvalidStatus, "invalid deal status")
	ErrInvalidStage          = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeInvalidStage, "invalid deal stage")
	ErrTitleRequired         = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeTitleRequired, "deal title is required")
	ErrDealIDRequired        = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeDealIDRequired, "deal id is required")
	ErrOwnerRequired         = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeOwnerRequired, "owner id is required")
	ErrInvalidPipeline       = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeInvalidPipeline, "pipeline tables are inconsistent")
	ErrInvalidPolicy         = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeInvalidPolicy, "policy value is invalid")
	ErrDealStoreRequired     = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeDealStoreRequired, "deal store is required")
	ErrActivitySinkRequired  = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeActivitySinkRequired, "activity sink is required")
	ErrMembershipRequired    = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeMembershipRequired, "membership lookup is required")
	ErrStoreRequired         = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeStoreRequired, "store is required")
	ErrResolverRequired      = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeResolverRequired, "resolver is required")
	ErrSnapshotRequired      = newSentinel(goerrors.CategoryInternal, goerrors.CodeInternal, TextCodeSnapshotRequired, "snapshot is required")
	ErrScopeRequired         = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeScopeRequired, "scope is required")
	ErrPathRequired          = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodePathRequired, "path is required")
	ErrPathInvalid           = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodePathInvalid, "path segment is not a map")
	ErrPreferencesRequired   = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodePreferencesRequired, "preferences store is required")
	ErrScopeMetadataRequired = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeScopeMetadataMissing, "scope metadata is missing")
)

var sentinels = []*goerrors.Error{
	ErrAuthorizationDenied,
	ErrOwnershipDenied,
	ErrRoleChangeDenied,
	ErrBackwardStageDenied,
	ErrInvalidTransition,
	ErrTerminalStatus,
	ErrTerminalStage,
	ErrWonRequiresAmount,
	ErrNegativeAmount,
	ErrUnsupportedCurrency,
	ErrDealNotFound,
	ErrNotAMember,
	ErrVersionConflict,
	ErrInvalidRole,
	ErrInvalidStatus,
	ErrInvalidStage,
	ErrTitleRequired,
	ErrDealIDRequired,
	ErrOwnerRequired,
	ErrInvalidPipeline,
	ErrInvalidPolicy,
	ErrDealStoreRequired,
	ErrActivitySinkRequired,
	ErrMembershipRequired,
	ErrStoreRequired,
	ErrResolverRequired,
	ErrSnapshotRequired,
	ErrScopeRequired,
	ErrPathRequired,
	ErrPathInvalid,
	ErrPreferencesRequired,
	ErrScopeMetadataRequired,
}

func newSentinel(category goerrors.Category, code int, textCode, message string) *goerrors.Error {
	err := goerrors.New(message, category).WithTextCode(textCode)
	if code != 0 {
		err.WithCode(code)
	}
	return err
}

// IsSentinel reports whether err is one of the package sentinels itself,
// not a wrapped copy.
func IsSentinel(err error) bool {
	for _, sentinel := range sentinels {
		if err == sentinel {
			return true
		}
	}
	return false
}

// WrapSentinel builds a fresh error that shares the sentinel's category and
// codes and unwraps to it.
func WrapSentinel(sentinel *goerrors.Error, message string, meta map[string]any) *goerrors.Error {
	if sentinel == nil {
		return nil
	}
	if message == "" {
		message = sentinel.Message
	}
	err := goerrors.New(message, sentinel.Category).
		WithTextCode(sentinel.TextCode).
		WithCode(sentinel.Code).
		WithSeverity(sentinel.Severity)
	err.Source = sentinel
	if meta != nil {
		err.WithMetadata(meta)
	}
	return err
}

func Wrap(err error, category goerrors.Category, textCode, message string, meta map[string]any) *goerrors.Error {
	if err == nil {
		return nil
	}
	if IsSentinel(err) {
		if sentinel, ok := err.(*goerrors.Error); ok {
			return WrapSentinel(sentinel, "", meta)
		}
	}
	if rich, ok := err.(*goerrors.Error); ok {
		clone := rich.Clone()
		if clone.TextCode == "" && textCode != "" {
			clone.TextCode = textCode
		}
		if clone.Message == "" && message != "" {
			clone.Message = message
		}
		if meta != nil {
			clone.WithMetadata(meta)
		}
		return clone
	}
	if message == "" {
		message = err.Error()
	}
	wrapped := goerrors.New(message, category).WithTextCode(textCode)
	wrapped.Source = err
	if meta != nil {
		wrapped.WithMetadata(meta)
	}
	return wrapped
}

func New(category goerrors.Category, textCode, message string, meta map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).WithTextCode(textCode)
	if meta != nil {
		err.WithMetadata(meta)
	}
	return err
}

func NewBadInput(textCode, message string, meta map[string]any) *goerrors.Error {
	return New(goerrors.CategoryBadInput, textCode, message, meta)
}

func WrapBadInput(err error, textCode, message string, meta map[string]any) *goerrors.Error {
	return Wrap(err, goerrors.CategoryBadInput, textCode, message, meta)
}

func NewOperation(textCode, message string, meta map[string]any) *goerrors.Error {
	return New(goerrors.CategoryOperation, textCode, message, meta)
}

func WrapExternal(err error, textCode, message string, meta map[string]any) *goerrors.Error {
	return Wrap(err, goerrors.CategoryExternal, textCode, message, meta)
}

func NewExternal(textCode, message string, meta map[string]any) *goerrors.Error {
	return New(goerrors.CategoryExternal, textCode, message, meta)
}

func WrapInternal(err error, textCode, message string, meta map[string]any) *goerrors.Error {
	return Wrap(err, goerrors.CategoryInternal, textCode, message, meta)
}

func As(err error) (*goerrors.Error, bool) {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich, true
	}
	return nil, false
}

// IsAuthorizationDenied reports role, ownership and role-change denials.
func IsAuthorizationDenied(err error) bool {
	return goerrors.HasCategory(err, goerrors.CategoryAuthz)
}

// IsInvalidTransition reports stage pairs the pipeline graph cannot reach.
func IsInvalidTransition(err error) bool {
	return goerrors.HasCategory(err, CategoryInvalidTransition)
}

// IsBusinessInvariant reports domain rule violations such as terminal locks.
func IsBusinessInvariant(err error) bool {
	return goerrors.HasCategory(err, CategoryBusinessInvariant)
}

func IsNotFound(err error) bool {
	return goerrors.HasCategory(err, goerrors.CategoryNotFound)
}

func IsBadInput(err error) bool {
	return goerrors.HasCategory(err, goerrors.CategoryBadInput)
}

func IsConflict(err error) bool {
	return goerrors.HasCategory(err, goerrors.CategoryConflict)
}
