// Package convert maps between google.protobuf.Struct payloads and domain types.
package convert

import (
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
)

// --- helpers ---

func ts(t time.Time) *structpb.Value {
	if t.IsZero() {
		return structpb.NewNullValue()
	}
	return structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
}

func strList(xs []string) *structpb.Value {
	vs := make([]*structpb.Value, 0, len(xs))
	for _, x := range xs {
		vs = append(vs, structpb.NewStringValue(x))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vs})
}

func field(in *structpb.Struct, name string) (*structpb.Value, bool) {
	if in == nil {
		return nil, false
	}
	v, ok := in.GetFields()[name]
	if !ok {
		return nil, false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, false
	}
	return v, true
}

// --- request fields (client -> server) ---

// Strings reads a list field given either as an array of strings or as one
// comma-separated string. Blank items are kept so validation can reject them.
func Strings(in *structpb.Struct, name string) ([]string, error) {
	v, ok := field(in, name)
	if !ok {
		return nil, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		if strings.TrimSpace(k.StringValue) == "" {
			return []string{}, nil
		}
		return strings.Split(k.StringValue, ","), nil
	case *structpb.Value_ListValue:
		out := make([]string, 0, len(k.ListValue.GetValues()))
		for i, item := range k.ListValue.GetValues() {
			s, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] is not a string", errs.ErrInvalidInput, name, i)
			}
			out = append(out, s.StringValue)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list or a comma-separated string", errs.ErrInvalidInput, name)
	}
}

// String reads a string field; missing is "".
func String(in *structpb.Struct, name string) (string, error) {
	v, ok := field(in, name)
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", errs.ErrInvalidInput, name)
	}
	return s.StringValue, nil
}

// Bool reads a boolean field; "true"/"false" strings are accepted too.
func Bool(in *structpb.Struct, name string) (bool, error) {
	v, ok := field(in, name)
	if !ok {
		return false, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	case *structpb.Value_StringValue:
		switch strings.ToLower(strings.TrimSpace(k.StringValue)) {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %s must be a boolean", errs.ErrInvalidInput, name)
}

// Int reads a whole-number field; missing is 0.
func Int(in *structpb.Struct, name string) (int, error) {
	v, ok := field(in, name)
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer", errs.ErrInvalidInput, name)
	}
	return int(n.NumberValue), nil
}

// Page reads skip/limit.
func Page(in *structpb.Struct) (model.Page, error) {
	skip, err := Int(in, "skip")
	if err != nil {
		return model.Page{}, err
	}
	limit, err := Int(in, "limit")
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Skip: skip, Limit: limit}, nil
}

// TagQuery reads prefix/skip/limit.
func TagQuery(in *structpb.Struct) (model.TagQuery, error) {
	prefix, err := String(in, "prefix")
	if err != nil {
		return model.TagQuery{}, err
	}
	p, err := Page(in)
	if err != nil {
		return model.TagQuery{}, err
	}
	return model.TagQuery{Prefix: prefix, Page: p}, nil
}

// VideoQuery reads tags/match_all/skip/limit.
func VideoQuery(in *structpb.Struct) (model.VideoQuery, error) {
	tags, err := Strings(in, "tags")
	if err != nil {
		return model.VideoQuery{}, err
	}
	all, err := Bool(in, "match_all")
	if err != nil {
		return model.VideoQuery{}, err
	}
	p, err := Page(in)
	if err != nil {
		return model.VideoQuery{}, err
	}
	return model.VideoQuery{Tags: tags, MatchAll: all, Page: p}, nil
}

// --- responses (server -> client) ---

// FromStrings wraps a list under name.
func FromStrings(name string, xs []string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{name: strList(xs)}}
}

// FromBatchResult renders succeeded ids and per-item errors.
func FromBatchResult(r model.BatchResult) *structpb.Struct {
	failed := make([]*structpb.Value, 0, len(r.Failed))
	for _, f := range r.Failed {
		failed = append(failed, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"id":    structpb.NewStringValue(f.ID),
			"error": structpb.NewStringValue(f.Err.Error()),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"succeeded": strList(r.Succeeded),
		"failed":    structpb.NewListValue(&structpb.ListValue{Values: failed}),
	}}
}

// FromRemoval renders what a removal unlinked and collected.
func FromRemoval(r model.Removal) *structpb.Struct {
	userTags := make([]string, 0, len(r.Cleanup.UserTags))
	for _, ut := range r.Cleanup.UserTags {
		userTags = append(userTags, ut.UserID+":"+ut.Tag)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"tags":   strList(r.Tags),
		"videos": strList(r.Videos),
		"cleanup": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"user_tags": strList(userTags),
			"tags":      strList(r.Cleanup.Tags),
			"videos":    strList(r.Cleanup.Videos),
		}}),
	}}
}

// FromVideo renders a video.
func FromVideo(v model.Video) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":            structpb.NewStringValue(v.ID),
		"title":         structpb.NewStringValue(v.Title),
		"description":   structpb.NewStringValue(v.Description),
		"thumbnail_url": structpb.NewStringValue(v.ThumbnailURL),
		"updated_at":    ts(v.UpdatedAt),
	}}
}

// FromUser renders a user.
func FromUser(u model.User) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"email":       structpb.NewStringValue(u.Email),
		"name":        structpb.NewStringValue(u.Name),
		"picture_url": structpb.NewStringValue(u.PictureURL),
		"created_at":  ts(u.CreatedAt),
	}}
}

// FromTagCounts renders the global tag listing.
func FromTagCounts(tcs []model.TagCount) *structpb.Struct {
	vs := make([]*structpb.Value, 0, len(tcs))
	for _, tc := range tcs {
		vs = append(vs, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"tag":   structpb.NewStringValue(tc.Tag),
			"users": structpb.NewNumberValue(float64(tc.Users)),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"tags": structpb.NewListValue(&structpb.ListValue{Values: vs}),
	}}
}

// FromReconcileReport renders sweep counts.
func FromReconcileReport(r model.ReconcileReport) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"user_tags": structpb.NewNumberValue(float64(r.UserTags)),
		"tags":      structpb.NewNumberValue(float64(r.Tags)),
		"videos":    structpb.NewNumberValue(float64(r.Videos)),
	}}
}
