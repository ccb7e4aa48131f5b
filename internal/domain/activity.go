package domain

import (
	"encoding/json"
	"fmt"
)

// ActivityAction names the kind of event an ActivityLog records
type ActivityAction string

const (
	ActionOfferCreated       ActivityAction = "OFFER_CREATED"
	ActionOfferUpdated       ActivityAction = "OFFER_UPDATED"
	ActionOfferStatusUpdated ActivityAction = "OFFER_STATUS_UPDATED"
	ActionOfferDeleted       ActivityAction = "OFFER_DELETED"
	ActionOfferNoteAdded     ActivityAction = "OFFER_NOTE_ADDED"
	ActionUserLogin          ActivityAction = "USER_LOGIN"
	ActionUserLogout         ActivityAction = "USER_LOGOUT"
	ActionTargetCreated      ActivityAction = "TARGET_CREATED"
	ActionTargetUpdated      ActivityAction = "TARGET_UPDATED"
)

// IsValid checks that the action is known
func (a ActivityAction) IsValid() bool {
	switch a {
	case ActionOfferCreated, ActionOfferUpdated, ActionOfferStatusUpdated, ActionOfferDeleted,
		ActionOfferNoteAdded, ActionUserLogin, ActionUserLogout, ActionTargetCreated, ActionTargetUpdated:
		return true
	}
	return false
}

// Entity types stored on activity logs
const (
	EntityOffer  = "offer"
	EntityUser   = "user"
	EntityTarget = "target"
)

// FieldChange is one entry of a field diff
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// ActivityDetails is the typed payload of an ActivityLog. Each implementation
// belongs to exactly one action.
type ActivityDetails interface {
	Action() ActivityAction
}

// OfferUpdatedDetails carries the field diff of an offer update
type OfferUpdatedDetails struct {
	Changes map[string]FieldChange `json:"changes"`
}

func (OfferUpdatedDetails) Action() ActivityAction { return ActionOfferUpdated }

// OfferCreatedDetails carries the initial offer snapshot
type OfferCreatedDetails struct {
	Offer map[string]any `json:"offer"`
}

func (OfferCreatedDetails) Action() ActivityAction { return ActionOfferCreated }

// OfferStatusUpdatedDetails is written by the stage/status endpoint
type OfferStatusUpdatedDetails struct {
	FromStage  OfferStage `json:"fromStage"`
	ToStage    OfferStage `json:"toStage"`
	FromStatus LeadStatus `json:"fromStatus,omitempty"`
	ToStatus   LeadStatus `json:"toStatus,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func (OfferStatusUpdatedDetails) Action() ActivityAction { return ActionOfferStatusUpdated }

type OfferDeletedDetails struct {
	Title string     `json:"title,omitempty"`
	Stage OfferStage `json:"stage"`
}

func (OfferDeletedDetails) Action() ActivityAction { return ActionOfferDeleted }

type OfferNoteAddedDetails struct {
	Stage   OfferStage `json:"stage"`
	Content string     `json:"content"`
}

func (OfferNoteAddedDetails) Action() ActivityAction { return ActionOfferNoteAdded }

// TargetDetails describes a created or updated sales target
type TargetDetails struct {
	Updated     bool                   `json:"-"`
	Scope       TargetScope            `json:"scope"`
	Period      TargetPeriod           `json:"period"`
	PeriodKey   string                 `json:"periodKey"`
	ProductType ProductType            `json:"productType,omitempty"`
	TargetValue string                 `json:"targetValue"`
	Changes     map[string]FieldChange `json:"changes,omitempty"`
}

func (d TargetDetails) Action() ActivityAction {
	if d.Updated {
		return ActionTargetUpdated
	}
	return ActionTargetCreated
}

// SessionDetails describes a login or logout
type SessionDetails struct {
	Logout bool   `json:"-"`
	Method string `json:"method,omitempty"`
}

func (d SessionDetails) Action() ActivityAction {
	if d.Logout {
		return ActionUserLogout
	}
	return ActionUserLogin
}

// DecodeActivityDetails parses stored JSON details back into the type that
// belongs to the action.
func DecodeActivityDetails(action ActivityAction, raw string) (ActivityDetails, error) {
	var (
		details ActivityDetails
		err     error
	)
	data := []byte(raw)
	if raw == "" || raw == "null" {
		data = []byte("{}")
	}

	switch action {
	case ActionOfferUpdated:
		var d OfferUpdatedDetails
		err = json.Unmarshal(data, &d)
		details = d
	case ActionOfferCreated:
		var d OfferCreatedDetails
		err = json.Unmarshal(data, &d)
		details = d
	case ActionOfferStatusUpdated:
		var d OfferStatusUpdatedDetails
		err = json.Unmarshal(data, &d)
		details = d
	case ActionOfferDeleted:
		var d OfferDeletedDetails
		err = json.Unmarshal(data, &d)
		details = d
	case ActionOfferNoteAdded:
		var d OfferNoteAddedDetails
		err = json.Unmarshal(data, &d)
		details = d
	case ActionTargetCreated, ActionTargetUpdated:
		var d TargetDetails
		err = json.Unmarshal(data, &d)
		d.Updated = action == ActionTargetUpdated
		details = d
	case ActionUserLogin, ActionUserLogout:
		var d SessionDetails
		err = json.Unmarshal(data, &d)
		d.Logout = action == ActionUserLogout
		details = d
	default:
		return nil, fmt.Errorf("unknown activity action %q", action)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", action, err)
	}
	return details, nil
}
