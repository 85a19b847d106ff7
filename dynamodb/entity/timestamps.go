package entity

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TsFormat is the wire representation a timestamp attribute is stamped in.
type TsFormat string

const (
	// TsISO stamps an RFC3339 string with fractional seconds.
	TsISO TsFormat = "ISO"
	// TsUNIX stamps an integer number of seconds since epoch, suitable as a
	// store-native TTL candidate.
	TsUNIX TsFormat = "UNIX"
)

// TsPolicy declares one timestamp attribute: its wire format and the
// attribute name it occupies on the item.
type TsPolicy struct {
	Format        TsFormat
	AttributeName string
}

func (p TsPolicy) attr(def string) string {
	if p.AttributeName == "" {
		return def
	}
	return p.AttributeName
}

func (p TsPolicy) value(t time.Time) types.AttributeValue {
	if p.Format == TsUNIX {
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
	}
	return &types.AttributeValueMemberS{Value: t.Format(time.RFC3339Nano)}
}

// TimestampConfig is the recognized options set for stamping createdAt and
// updatedAt attributes: both are optional, and each defaults its attribute
// name independently of the other ("createdAt"/"updatedAt").
type TimestampConfig struct {
	CreatedAt *TsPolicy
	UpdatedAt *TsPolicy
}

// stampCreate writes createdAt and updatedAt into doc for a fresh item,
// honoring I4: a timestamp already present in doc (the caller supplied one
// explicitly) is never overwritten.
func stampCreate(cfg TimestampConfig, doc map[string]types.AttributeValue, now time.Time) {
	if cfg.CreatedAt != nil {
		attr := cfg.CreatedAt.attr("createdAt")
		if _, exists := doc[attr]; !exists {
			doc[attr] = cfg.CreatedAt.value(now)
		}
	}
	if cfg.UpdatedAt != nil {
		attr := cfg.UpdatedAt.attr("updatedAt")
		if _, exists := doc[attr]; !exists {
			doc[attr] = cfg.UpdatedAt.value(now)
		}
	}
}

// stampUpdate returns the updatedAt attribute to merge into an update's set
// payload, unless patch already supplies one explicitly.
func stampUpdate(cfg TimestampConfig, patch map[string]types.AttributeValue, now time.Time) map[string]types.AttributeValue {
	if cfg.UpdatedAt == nil {
		return nil
	}
	attr := cfg.UpdatedAt.attr("updatedAt")
	if _, exists := patch[attr]; exists {
		return nil
	}
	return map[string]types.AttributeValue{attr: cfg.UpdatedAt.value(now)}
}
