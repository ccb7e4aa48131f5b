package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
)

const (
	timestampLayout = "2006-01-02T15:04:05Z"
	dateLayout      = "2006-01-02"
)

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// DecimalPtrToFloat converts a nullable amount for JSON output
func DecimalPtrToFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// ToZoneDTO converts Zone to ZoneDTO
func ToZoneDTO(zone *domain.Zone) domain.ZoneDTO {
	return domain.ZoneDTO{
		ID:   zone.ID,
		Name: zone.Name,
		Code: zone.Code,
	}
}

// ToCustomerDTO converts Customer to CustomerDTO
func ToCustomerDTO(customer *domain.Customer) domain.CustomerDTO {
	return domain.CustomerDTO{
		ID:        customer.ID,
		Name:      customer.Name,
		Code:      customer.Code,
		Email:     customer.Email,
		Phone:     customer.Phone,
		City:      customer.City,
		Country:   customer.Country,
		ZoneID:    customer.ZoneID,
		CreatedAt: formatTimestamp(customer.CreatedAt),
	}
}

// ToCustomerWithDetailsDTO converts a customer with its loaded contacts and assets
func ToCustomerWithDetailsDTO(customer *domain.Customer) domain.CustomerWithDetailsDTO {
	dto := domain.CustomerWithDetailsDTO{
		CustomerDTO: ToCustomerDTO(customer),
		Contacts:    make([]domain.ContactDTO, len(customer.Contacts)),
		Assets:      make([]domain.AssetDTO, len(customer.Assets)),
	}
	for i := range customer.Contacts {
		dto.Contacts[i] = ToContactDTO(&customer.Contacts[i])
	}
	for i := range customer.Assets {
		dto.Assets[i] = ToAssetDTO(&customer.Assets[i])
	}
	return dto
}

// ToContactDTO converts Contact to ContactDTO
func ToContactDTO(contact *domain.Contact) domain.ContactDTO {
	return domain.ContactDTO{
		ID:         contact.ID,
		CustomerID: contact.CustomerID,
		FirstName:  contact.FirstName,
		LastName:   contact.LastName,
		FullName:   contact.FullName(),
		Email:      contact.Email,
		Phone:      contact.Phone,
		Position:   contact.Position,
	}
}

func ToAssetDTO(asset *domain.Asset) domain.AssetDTO {
	return domain.AssetDTO{
		ID:           asset.ID,
		CustomerID:   asset.CustomerID,
		SerialNumber: asset.SerialNumber,
		Model:        asset.Model,
		Description:  asset.Description,
	}
}

func ToSparePartDTO(part *domain.SparePart) domain.SparePartDTO {
	return domain.SparePartDTO{
		ID:          part.ID,
		PartNumber:  part.PartNumber,
		Description: part.Description,
		UnitPrice:   part.UnitPrice.InexactFloat64(),
	}
}

// ToOfferSparePartDTO converts a spare part line and computes its total
func ToOfferSparePartDTO(line *domain.OfferSparePart) domain.OfferSparePartDTO {
	dto := domain.OfferSparePartDTO{
		ID:          line.ID,
		SparePartID: line.SparePartID,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice.InexactFloat64(),
		LineTotal:   line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).InexactFloat64(),
	}
	if line.SparePart != nil {
		dto.PartNumber = line.SparePart.PartNumber
	}
	return dto
}

func ToStageRemarkDTO(remark *domain.StageRemark) domain.StageRemarkDTO {
	return domain.StageRemarkDTO{
		ID:         remark.ID,
		Stage:      remark.Stage,
		Content:    remark.Content,
		AuthorID:   remark.AuthorID,
		AuthorName: remark.AuthorName,
		CreatedAt:  formatTimestamp(remark.CreatedAt),
	}
}

// ToOfferDTO converts Offer to OfferDTO, including whichever relations are loaded
func ToOfferDTO(offer *domain.Offer) domain.OfferDTO {
	dto := domain.OfferDTO{
		ID:                    offer.ID,
		ReferenceNumber:       offer.ReferenceNumber,
		Title:                 offer.Title,
		CustomerID:            offer.CustomerID,
		ZoneID:                offer.ZoneID,
		ContactID:             offer.ContactID,
		Assets:                make([]domain.AssetDTO, len(offer.Assets)),
		ProductType:           offer.ProductType,
		LeadStatus:            offer.LeadStatus,
		Stage:                 offer.Stage,
		OfferReferenceDate:    formatDate(offer.OfferReferenceDate),
		OfferValue:            DecimalPtrToFloat(offer.OfferValue),
		OfferMonth:            offer.OfferMonth,
		ProbabilityPercentage: offer.ProbabilityPercentage,
		POExpectedMonth:       offer.POExpectedMonth,
		PONumber:              offer.PONumber,
		PODate:                formatDate(offer.PODate),
		POValue:               DecimalPtrToFloat(offer.POValue),
		BookingDateInSAP:      formatDate(offer.BookingDateInSAP),
		Remarks:               offer.Remarks,
		CreatedByID:           offer.CreatedByID,
		CreatedByName:         offer.CreatedByName,
		Version:               offer.Version,
		StageRemarks:          make([]domain.StageRemarkDTO, len(offer.StageRemarks)),
		CreatedAt:             formatTimestamp(offer.CreatedAt),
		UpdatedAt:             formatTimestamp(offer.UpdatedAt),
	}

	if offer.Customer != nil {
		customer := ToCustomerDTO(offer.Customer)
		dto.Customer = &customer
	}
	if offer.Zone != nil {
		zone := ToZoneDTO(offer.Zone)
		dto.Zone = &zone
	}
	if offer.Contact != nil {
		contact := ToContactDTO(offer.Contact)
		dto.Contact = &contact
	}
	for i := range offer.Assets {
		dto.Assets[i] = ToAssetDTO(&offer.Assets[i])
	}
	for i := range offer.SpareParts {
		dto.SpareParts = append(dto.SpareParts, ToOfferSparePartDTO(&offer.SpareParts[i]))
	}
	for i := range offer.StageRemarks {
		dto.StageRemarks[i] = ToStageRemarkDTO(&offer.StageRemarks[i])
	}

	return dto
}

// ToActivityDTO converts ActivityLog to ActivityDTO. Details are passed
// through as raw JSON.
func ToActivityDTO(log *domain.ActivityLog) domain.ActivityDTO {
	dto := domain.ActivityDTO{
		ID:              log.ID,
		Action:          log.Action,
		UserID:          log.UserID,
		UserName:        log.UserName,
		EntityType:      log.EntityType,
		EntityID:        log.EntityID,
		ReferenceNumber: log.ReferenceNumber,
		IPAddress:       log.IPAddress,
		UserAgent:       log.UserAgent,
		RequestID:       log.RequestID,
		CreatedAt:       formatTimestamp(log.CreatedAt),
	}
	if log.Details != "" && json.Valid([]byte(log.Details)) {
		dto.Details = json.RawMessage(log.Details)
	}
	return dto
}

// ToActivityDTOs converts a page of activity logs
func ToActivityDTOs(logs []domain.ActivityLog) []domain.ActivityDTO {
	out := make([]domain.ActivityDTO, len(logs))
	for i := range logs {
		out[i] = ToActivityDTO(&logs[i])
	}
	return out
}

// ToTargetDTO converts Target to TargetDTO
func ToTargetDTO(target *domain.Target) domain.TargetDTO {
	dto := domain.TargetDTO{
		ID:          target.ID,
		Scope:       target.Scope,
		ZoneID:      target.ZoneID,
		UserID:      target.UserID,
		Period:      target.Period,
		PeriodKey:   target.PeriodKey,
		ProductType: target.ProductType,
		TargetValue: target.TargetValue.InexactFloat64(),
		CreatedAt:   formatTimestamp(target.CreatedAt),
	}
	if target.Zone != nil {
		dto.ZoneName = target.Zone.Name
	}
	if target.User != nil {
		dto.UserName = target.User.Name
	}
	return dto
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:     user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		ZoneID: user.ZoneID,
	}
}

// FormatError creates a formatted error message
func FormatError(entity, operation string, err error) error {
	return fmt.Errorf("failed to %s %s: %w", operation, entity, err)
}
