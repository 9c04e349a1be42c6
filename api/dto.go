/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Charges cross the wire as decimal strings ("1250.00"), never floats.
  An unpriced selection serializes its mrc/nrc as null - a client must be
  able to tell "not priced yet" from "free".

TYPES:
  Catalog:
    AreaDTO, LocationDTO, ModuleDTO, RouteOptionDTO, ConnectionTypeDTO,
    CompanyDTO, ContactDTO

  Selection:
    EndpointDTO, SelectionDTO, ApplyChangeRequest

  ODF:
    ODFDTO, AvailabilityDTO, PortAssignmentDTO

  Viability:
    ViabilityDTO, CreateViabilityRequest, ReasonRequest

  Approval:
    SessionDTO, SetContactsRequest, SetPortsRequest, SubmitRequest

  Orders / circuits:
    OrderDTO, UpdateOrderRequest, AttachmentDTO, AddAttachmentRequest,
    CircuitDTO, CreateCircuitRequest

SEE ALSO:
  - handlers.go: Uses these types
  - catalog/types.go: The domain Selection these mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibernova/provision-engine/approval"
	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/order"
	"github.com/fibernova/provision-engine/viability"
	"github.com/fibernova/provision-engine/workflow"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// =============================================================================
// CATALOG
// =============================================================================

type AreaDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type LocationDTO struct {
	ID     string `json:"id"`
	AreaID string `json:"area_id"`
	Name   string `json:"name"`
}

type ModuleDTO struct {
	ID          string `json:"id"`
	LocationID  string `json:"location_id"`
	Name        string `json:"name"`
	Coordinates string `json:"coordinates,omitempty"`
	TenantName  string `json:"tenant_name,omitempty"`
}

type ConnectionTypeDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RouteOptionDTO is a candidate route with its price for the currently
// selected connection type. MRC/NRC are null until a rate resolves.
type RouteOptionDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	DistanceKM string  `json:"distance_km"`
	MRC        *string `json:"mrc"`
	NRC        *string `json:"nrc"`
}

type QuoteDTO struct {
	RouteID          string `json:"route_id"`
	ConnectionTypeID string `json:"connection_type_id"`
	MRC              string `json:"mrc"`
	NRC              string `json:"nrc"`
}

type CompanyDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ContactDTO struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Type      string `json:"type"`
}

// =============================================================================
// SELECTION
// =============================================================================

type EndpointDTO struct {
	AreaID      string `json:"area_id"`
	LocationID  string `json:"location_id"`
	ModuleID    string `json:"module_id"`
	Coordinates string `json:"coordinates"`
	TenantName  string `json:"tenant_name"`
}

// SelectionDTO mirrors catalog.Selection on the wire.
type SelectionDTO struct {
	A                EndpointDTO `json:"a"`
	Z                EndpointDTO `json:"z"`
	RouteID          string      `json:"route_id"`
	ConnectionTypeID string      `json:"connection_type_id"`
	MRC              *string     `json:"mrc"`
	NRC              *string     `json:"nrc"`
}

// ApplyChangeRequest carries one wizard edit: the current selection plus the
// changed level. The response is the derived selection with dependent levels
// reset.
type ApplyChangeRequest struct {
	Selection SelectionDTO `json:"selection"`
	Side      string       `json:"side"`  // "a" or "z"
	Level     string       `json:"level"` // area|location|module|route|connection_type
	Value     string       `json:"value"`
}

// =============================================================================
// ODF
// =============================================================================

type ODFDTO struct {
	Code       string `json:"code"`
	TotalPorts int    `json:"total_ports"`
}

type AvailabilityDTO struct {
	ODFCode        string `json:"odf_code"`
	TotalPorts     int    `json:"total_ports"`
	AvailablePorts []int  `json:"available_ports"`
}

type PortAssignmentDTO struct {
	ODFCode string `json:"odf_code"`
	Port    int    `json:"port"`
}

// =============================================================================
// VIABILITY
// =============================================================================

type ViabilityDTO struct {
	ID             string       `json:"id"`
	DocumentNumber string       `json:"document_number"`
	Classification string       `json:"classification"`
	Special        bool         `json:"special"`
	CompanyID      string       `json:"company_id"`
	Selection      SelectionDTO `json:"selection"`
	Reason         *string      `json:"reason,omitempty"`
	CreatedAt      string       `json:"created_at"`
	ApprovedAt     *string      `json:"approved_at,omitempty"`
	RejectedAt     *string      `json:"rejected_at,omitempty"`
}

type CreateViabilityRequest struct {
	CompanyID  string       `json:"company_id"`
	Selection  SelectionDTO `json:"selection"`
	Special    bool         `json:"special"`
	SpecialMRC *string      `json:"special_mrc,omitempty"`
	SpecialNRC *string      `json:"special_nrc,omitempty"`
}

// ReasonRequest backs cancel and reject.
type ReasonRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor,omitempty"`
}

// =============================================================================
// APPROVAL SESSIONS
// =============================================================================

type SessionDTO struct {
	ID                  string             `json:"id"`
	ViabilityID         string             `json:"viability_id"`
	Step                string             `json:"step"`
	CommercialContactID string             `json:"commercial_contact_id,omitempty"`
	TechnicalContactID  string             `json:"technical_contact_id,omitempty"`
	Primary             *PortAssignmentDTO `json:"primary,omitempty"`
	Secondary           *PortAssignmentDTO `json:"secondary,omitempty"`
	UsesRedundantPoint  bool               `json:"uses_redundant_point"`
	Confirmed           bool               `json:"confirmed"`
	Completed           bool               `json:"completed"`
	LastError           string             `json:"last_error,omitempty"`
}

type SetContactsRequest struct {
	CommercialContactID string `json:"commercial_contact_id"`
	TechnicalContactID  string `json:"technical_contact_id"`
}

type SetPortsRequest struct {
	Primary            PortAssignmentDTO  `json:"primary"`
	Secondary          *PortAssignmentDTO `json:"secondary,omitempty"`
	UsesRedundantPoint bool               `json:"uses_redundant_point"`
}

type SubmitRequest struct {
	Actor string `json:"actor"`
}

// =============================================================================
// ORDERS
// =============================================================================

type OrderDTO struct {
	ID                    string             `json:"id"`
	DocumentNumber        string             `json:"document_number"`
	ViabilityID           string             `json:"viability_id"`
	CompanyID             string             `json:"company_id"`
	RouteID               string             `json:"route_id"`
	ConnectionTypeID      string             `json:"connection_type_id"`
	DistanceKM            string             `json:"distance_km"`
	MRC                   string             `json:"mrc"`
	NRC                   string             `json:"nrc"`
	Primary               *PortAssignmentDTO `json:"primary,omitempty"`
	Secondary             *PortAssignmentDTO `json:"secondary,omitempty"`
	UsesRedundantPoint    bool               `json:"uses_redundant_point"`
	CommercialContactID   string             `json:"commercial_contact_id,omitempty"`
	TechnicalContactID    string             `json:"technical_contact_id,omitempty"`
	LocationDetail        string             `json:"location_detail,omitempty"`
	InterconnectionDetail string             `json:"interconnection_detail,omitempty"`
	ServiceDetail         string             `json:"service_detail,omitempty"`
	CircuitCreated        bool               `json:"circuit_created"`
	CreatedAt             string             `json:"created_at"`
	UpdatedAt             string             `json:"updated_at"`
}

// UpdateOrderRequest is a partial edit: absent fields are unchanged.
// clear_secondary removes the redundant point and releases its port.
type UpdateOrderRequest struct {
	LocationDetail        *string            `json:"location_detail,omitempty"`
	InterconnectionDetail *string            `json:"interconnection_detail,omitempty"`
	ServiceDetail         *string            `json:"service_detail,omitempty"`
	Primary               *PortAssignmentDTO `json:"primary,omitempty"`
	Secondary             *PortAssignmentDTO `json:"secondary,omitempty"`
	ClearSecondary        bool               `json:"clear_secondary,omitempty"`
	CommercialContactID   *string            `json:"commercial_contact_id,omitempty"`
	TechnicalContactID    *string            `json:"technical_contact_id,omitempty"`
}

type AttachmentDTO struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	Kind       string `json:"kind"`
	Filename   string `json:"filename"`
	UploadedAt string `json:"uploaded_at"`
}

type AddAttachmentRequest struct {
	Kind     string `json:"kind"`
	Filename string `json:"filename"`
}

// =============================================================================
// CIRCUITS
// =============================================================================

type CircuitDTO struct {
	ID             string             `json:"id"`
	DocumentNumber string             `json:"document_number"`
	OrderID        string             `json:"order_id"`
	CIDA           string             `json:"cid_a"`
	CIDZ           string             `json:"cid_z"`
	Primary        *PortAssignmentDTO `json:"primary,omitempty"`
	Secondary      *PortAssignmentDTO `json:"secondary,omitempty"`
	FTPReference   string             `json:"ftp_reference,omitempty"`
	DistanceKM     string             `json:"distance_km"`
	MRC            string             `json:"mrc"`
	NRC            string             `json:"nrc"`
	CreatedAt      string             `json:"created_at"`
}

// CreateCircuitRequest carries the final physical attributes. Absent
// distance/price keep the order's snapshot.
type CreateCircuitRequest struct {
	CIDA         string  `json:"cid_a"`
	CIDZ         string  `json:"cid_z"`
	FTPReference string  `json:"ftp_reference,omitempty"`
	DistanceKM   *string `json:"distance_km,omitempty"`
	MRC          *string `json:"mrc,omitempty"`
	NRC          *string `json:"nrc,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEndpoint(d EndpointDTO) catalog.Endpoint {
	return catalog.Endpoint{
		AreaID:      d.AreaID,
		LocationID:  d.LocationID,
		ModuleID:    d.ModuleID,
		Coordinates: d.Coordinates,
		TenantName:  d.TenantName,
	}
}

func fromEndpoint(e catalog.Endpoint) EndpointDTO {
	return EndpointDTO{
		AreaID:      e.AreaID,
		LocationID:  e.LocationID,
		ModuleID:    e.ModuleID,
		Coordinates: e.Coordinates,
		TenantName:  e.TenantName,
	}
}

func toSelection(d SelectionDTO) (catalog.Selection, error) {
	sel := catalog.Selection{
		A:                toEndpoint(d.A),
		Z:                toEndpoint(d.Z),
		RouteID:          d.RouteID,
		ConnectionTypeID: d.ConnectionTypeID,
	}
	var err error
	if sel.MRC, err = parseDecimalPtr("mrc", d.MRC); err != nil {
		return sel, err
	}
	sel.NRC, err = parseDecimalPtr("nrc", d.NRC)
	return sel, err
}

func fromSelection(s catalog.Selection) SelectionDTO {
	return SelectionDTO{
		A:                fromEndpoint(s.A),
		Z:                fromEndpoint(s.Z),
		RouteID:          s.RouteID,
		ConnectionTypeID: s.ConnectionTypeID,
		MRC:              decimalStr(s.MRC),
		NRC:              decimalStr(s.NRC),
	}
}

func fromViability(r *viability.Request) ViabilityDTO {
	return ViabilityDTO{
		ID:             string(r.ID),
		DocumentNumber: r.DocumentNumber,
		Classification: string(r.Classification),
		Special:        r.Special,
		CompanyID:      r.CompanyID,
		Selection:      fromSelection(r.Selection),
		Reason:         r.Reason,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		ApprovedAt:     timeStr(r.ApprovedAt),
		RejectedAt:     timeStr(r.RejectedAt),
	}
}

func fromOrder(o *order.ServiceOrder) OrderDTO {
	return OrderDTO{
		ID:                    string(o.ID),
		DocumentNumber:        o.DocumentNumber,
		ViabilityID:           string(o.ViabilityID),
		CompanyID:             o.CompanyID,
		RouteID:               o.RouteID,
		ConnectionTypeID:      o.ConnectionTypeID,
		DistanceKM:            o.DistanceKM.String(),
		MRC:                   o.MRC.String(),
		NRC:                   o.NRC.String(),
		Primary:               fromAssignment(o.Primary),
		Secondary:             fromAssignment(o.Secondary),
		UsesRedundantPoint:    o.UsesRedundantPoint,
		CommercialContactID:   o.CommercialContactID,
		TechnicalContactID:    o.TechnicalContactID,
		LocationDetail:        o.LocationDetail,
		InterconnectionDetail: o.InterconnectionDetail,
		ServiceDetail:         o.ServiceDetail,
		CircuitCreated:        o.CircuitCreated,
		CreatedAt:             o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             o.UpdatedAt.Format(time.RFC3339),
	}
}

func fromCircuit(c *order.Circuit) CircuitDTO {
	return CircuitDTO{
		ID:             string(c.ID),
		DocumentNumber: c.DocumentNumber,
		OrderID:        string(c.OrderID),
		CIDA:           c.CIDA,
		CIDZ:           c.CIDZ,
		Primary:        fromAssignment(c.Primary),
		Secondary:      fromAssignment(c.Secondary),
		FTPReference:   c.FTPReference,
		DistanceKM:     c.DistanceKM.String(),
		MRC:            c.MRC.String(),
		NRC:            c.NRC.String(),
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}

func fromAttachment(a order.Attachment) AttachmentDTO {
	return AttachmentDTO{
		ID:         a.ID,
		OrderID:    string(a.OrderID),
		Kind:       string(a.Kind),
		Filename:   a.Filename,
		UploadedAt: a.UploadedAt.Format(time.RFC3339),
	}
}

func fromSession(s *approval.Session) SessionDTO {
	return SessionDTO{
		ID:                  s.ID,
		ViabilityID:         string(s.ViabilityID),
		Step:                s.Step.String(),
		CommercialContactID: s.CommercialContactID,
		TechnicalContactID:  s.TechnicalContactID,
		Primary:             fromAssignment(s.Primary),
		Secondary:           fromAssignment(s.Secondary),
		UsesRedundantPoint:  s.UsesRedundantPoint,
		Confirmed:           s.Confirmed,
		Completed:           s.Completed,
		LastError:           s.LastError,
	}
}

func toAssignment(d *PortAssignmentDTO) *odf.PortAssignment {
	if d == nil {
		return nil
	}
	return &odf.PortAssignment{ODFCode: d.ODFCode, Port: d.Port}
}

func fromAssignment(p *odf.PortAssignment) *PortAssignmentDTO {
	if p == nil {
		return nil
	}
	return &PortAssignmentDTO{ODFCode: p.ODFCode, Port: p.Port}
}

func decimalStr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func timeStr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func parseDecimalPtr(field string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, &workflow.FieldError{Field: field, Message: "not a decimal"}
	}
	return &d, nil
}
