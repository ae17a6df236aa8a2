// Package scanner reads pgx rows into structs or into single values.
package scanner

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

type Queryer interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

// Scanner converts rows into []T.
//
// When T is a struct, each column goes to the field
//
//  1. tagged with `sql:"<column>"`, or
//  2. named as the column, or
//  3. named as the column in CamelCase ("device_type" -> "DeviceType").
//
// A column without a field is an error.
//
// Otherwise (T is a primitive, time.Time or []byte), rows should have exactly one column.
//
//	names, err := scanner.New[string]().QueryAll(ctx, conn, `select "name" from "artifact"`)
type Scanner[T any] interface {
	ScanAll(pgx.Rows) ([]T, error)
	QueryAll(ctx context.Context, conn Queryer, sql string, args ...any) ([]T, error)
}

func New[T any]() Scanner[T] {
	typ := reflect.TypeOf(*new(T))
	if typ.Kind() != reflect.Struct || typ == reflect.TypeOf(time.Time{}) {
		return single[T]{}
	}

	fields := map[string]int{}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		if _, ok := fields[f.Name]; !ok {
			fields[f.Name] = i
		}
	}
	// tags win over names.
	for i := 0; i < typ.NumField(); i++ {
		if tag, ok := typ.Field(i).Tag.Lookup("sql"); ok {
			fields[tag] = i
		}
	}
	return structured[T]{fields: fields}
}

func query[T any](ctx context.Context, s Scanner[T], conn Queryer, sql string, args []any) ([]T, error) {
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.ScanAll(rows)
}

type structured[T any] struct {
	// column or field name -> field index
	fields map[string]int
}

func (s structured[T]) QueryAll(ctx context.Context, conn Queryer, sql string, args ...any) ([]T, error) {
	return query[T](ctx, s, conn, sql, args)
}

func (s structured[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	columns := rows.FieldDescriptions()
	index := make([]int, len(columns))
	for nth, fd := range columns {
		col := string(fd.Name)
		i, ok := s.fields[col]
		if !ok {
			i, ok = s.fields[camel(col)]
		}
		if !ok {
			return nil, fmt.Errorf(`no field for column "%s" in %T`, col, *new(T))
		}
		index[nth] = i
	}

	ret := []T{}
	dest := make([]any, len(index))
	for rows.Next() {
		elem := new(T)
		v := reflect.ValueOf(elem).Elem()
		for nth, i := range index {
			dest[nth] = v.Field(i).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		ret = append(ret, *elem)
	}
	return ret, rows.Err()
}

func camel(snake string) string {
	b := &strings.Builder{}
	for _, word := range strings.Split(snake, "_") {
		if word == "" {
			continue
		}
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(word[1:])
	}
	return b.String()
}

type single[T any] struct{}

func (s single[T]) QueryAll(ctx context.Context, conn Queryer, sql string, args ...any) ([]T, error) {
	return query[T](ctx, s, conn, sql, args)
}

func (single[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	columns := rows.FieldDescriptions()
	if len(columns) != 1 {
		return nil, fmt.Errorf("%d columns for %T: expected just 1", len(columns), *new(T))
	}

	ret := []T{}
	for rows.Next() {
		var elem T
		if err := rows.Scan(&elem); err != nil {
			return nil, fmt.Errorf(
				`column "%s" (%s) into %T: %w`,
				columns[0].Name, typeName(columns[0].DataTypeOID), elem, err,
			)
		}
		ret = append(ret, elem)
	}
	return ret, rows.Err()
}

var typeNames = map[uint32]string{
	pgtype.BoolOID:        "bool",
	pgtype.Int4OID:        "int4",
	pgtype.Int8OID:        "int8",
	pgtype.TextOID:        "text",
	pgtype.VarcharOID:     "varchar",
	pgtype.TimestamptzOID: "timestamptz",
	pgtype.UUIDOID:        "uuid",
}

func typeName(oid uint32) string {
	if name, ok := typeNames[oid]; ok {
		return name
	}
	return fmt.Sprintf("oid %d", oid)
}
