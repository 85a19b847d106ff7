package ddbsdk

import (
	"context"
	"fmt"

	"github.com/acksell/entitykit/dynamodb/table"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ScanBuilder describes a scan before it's handed to a Client: which table
// (or GSI) to scan. Unlike a query it carries no key condition, so it walks
// every partition. Build it with ScanTable.
type ScanBuilder struct {
	table     table.TableDefinition
	indexName *string
}

// ScanTable starts a scan over an entire table.
func ScanTable(t table.TableDefinition) ScanBuilder {
	return ScanBuilder{table: t}
}

// OnIndex scans a GSI instead of the table's primary index.
func (sb ScanBuilder) OnIndex(name string) ScanBuilder {
	sb.indexName = &name
	return sb
}

// Scanner executes a scan, page by page, across an entire table or GSI.
type Scanner struct {
	awsddb AWSDynamoClientV2

	table table.TableDefinition

	lastCursor map[string]types.AttributeValue

	opts scanOptions
}

type scanOptions struct {
	eventuallyConsistent bool
	pageSize             int32
	indexName            *string
	filter               expression2.ConditionBuilder
	projection           []string
}

func newScannerFromBuilder(ddb AWSDynamoClientV2, sb ScanBuilder) *Scanner {
	return &Scanner{
		awsddb: ddb,
		table:  sb.table,
		opts: scanOptions{
			pageSize:  defaultPageSize,
			indexName: sb.indexName,
		},
	}
}

// ScanResult is a single page of scan results.
type ScanResult struct {
	Items  []map[string]types.AttributeValue
	IsDone bool
}

// Cursor returns the opaque key of the last page fetched, or nil if Next
// hasn't been called yet or the scan is exhausted.
func (s *Scanner) Cursor() map[string]types.AttributeValue {
	return s.lastCursor
}

// StartFrom resumes a scan from a cursor previously returned by Cursor.
func (s *Scanner) StartFrom(cursor map[string]types.AttributeValue) *Scanner {
	s.lastCursor = cursor
	return s
}

func (s *Scanner) Next(ctx context.Context) (*ScanResult, error) {
	input := &dynamodbv2.ScanInput{
		TableName:         &s.table.Name,
		IndexName:         s.opts.indexName,
		ConsistentRead:    ptr(!s.opts.eventuallyConsistent && s.opts.indexName == nil),
		Limit:             ptr(s.opts.pageSize),
		ExclusiveStartKey: s.lastCursor,
	}

	if s.opts.filter.IsSet() || len(s.opts.projection) > 0 {
		b := expression2.NewBuilder()
		if s.opts.filter.IsSet() {
			b = b.WithFilter(s.opts.filter)
		}
		if len(s.opts.projection) > 0 {
			var proj expression2.ProjectionBuilder
			for i, attr := range s.opts.projection {
				if i == 0 {
					proj = expression2.NamesList(expression2.Name(attr))
				} else {
					proj = proj.AddNames(expression2.Name(attr))
				}
			}
			b = b.WithProjection(proj)
		}
		expr, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build scan expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeValues = expr.Values()
		input.ExpressionAttributeNames = expr.Names()
	}

	res, err := s.awsddb.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.lastCursor = res.LastEvaluatedKey
	return &ScanResult{
		Items:  res.Items,
		IsDone: res.LastEvaluatedKey == nil,
	}, nil
}

// ScanAll drains every page of the scan, following cursors until
// exhausted, and returns all items together.
func (s *Scanner) ScanAll(ctx context.Context) (*ScanResult, error) {
	var all []map[string]types.AttributeValue
	for {
		page, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.IsDone {
			break
		}
	}
	return &ScanResult{Items: all, IsDone: true}, nil
}

func (s *Scanner) WithEventuallyConsistentReads() *Scanner {
	s.opts.eventuallyConsistent = true
	return s
}

func (s *Scanner) WithPageSize(limit int) *Scanner {
	s.opts.pageSize = int32(limit)
	return s
}

func (s *Scanner) WithGSI(indexName string) *Scanner {
	s.opts.indexName = &indexName
	return s
}

// Projection limits the returned attributes to the given names.
func (s *Scanner) Projection(attrs ...string) *Scanner {
	s.opts.projection = attrs
	return s
}

// Filter adds a filter expression, evaluated by DynamoDB after each page is
// read but before results are returned. Filtered items still count against
// the page's read capacity.
func (s *Scanner) Filter(c expression2.ConditionBuilder) *Scanner {
	if s.opts.filter.IsSet() {
		s.opts.filter = s.opts.filter.And(c)
	} else {
		s.opts.filter = c
	}
	return s
}

// WithEntityFilter filters results to a single entity type: rows whose
// discriminatorAttr attribute isn't exactly typ are excluded from the page
// (still counted against its read capacity, same as any other filter).
func (s *Scanner) WithEntityFilter(discriminatorAttr, typ string) *Scanner {
	return s.Filter(expression2.Equal(expression2.Name(discriminatorAttr), expression2.Value(typ)))
}
