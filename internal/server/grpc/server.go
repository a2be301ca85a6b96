// Package grpcserver exposes the video tagging API over gRPC.
//
// Messages are google.protobuf.Struct in both directions, so the service is
// described by hand instead of by generated stubs.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/vidtags/internal/convert"
	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/limiter"
	"github.com/and161185/vidtags/internal/model"
)

// Mutations is the write side, implemented by service.Orchestrator.
type Mutations interface {
	AddTagsToVideos(ctx context.Context, userID string, tags, videoIDs []string) (model.BatchResult, error)
	SaveVideos(ctx context.Context, userID string, videoIDs []string) (model.BatchResult, error)
	RemoveTagsFromVideos(ctx context.Context, userID string, tags, videoIDs []string) (model.Removal, error)
	RemoveAllTagsFromVideos(ctx context.Context, userID string, videoIDs []string) (model.Removal, error)
	RemoveVideosFromUser(ctx context.Context, userID string, videoIDs []string) (model.Removal, error)
	RemoveUserEntirely(ctx context.Context, userID string) (model.Removal, error)
	RemoveVideosGlobally(ctx context.Context, videoIDs []string) (model.Removal, error)
	RefreshVideos(ctx context.Context, videoIDs []string) (model.BatchResult, error)
}

// Queries is the read side, implemented by service.QueryService.
type Queries interface {
	TagsOfUser(ctx context.Context, userID string, q model.TagQuery) ([]string, error)
	TagsOfVideo(ctx context.Context, userID, videoID string) ([]string, error)
	VideosOfUser(ctx context.Context, userID string, q model.VideoQuery) ([]string, error)
	Video(ctx context.Context, videoID string) (model.Video, error)
	GlobalTags(ctx context.Context, p model.Page) ([]model.TagCount, error)
}

// Users keeps profiles in step with the token holder.
type Users interface {
	EnsureUser(ctx context.Context, u model.User) (model.User, error)
	User(ctx context.Context, email string) (model.User, error)
}

// Sweeper repairs orphan rows on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (model.ReconcileReport, error)
}

// Deps are the services behind the handlers.
type Deps struct {
	Mutations Mutations
	Queries   Queries
	Users     Users
	Sweeper   Sweeper
	SignKey   []byte
	Admins    []string        // emails allowed to call admin methods
	Limiter   limiter.Limiter // optional lockout for peers sending bad tokens
}

// Server wires services into gRPC handlers.
type Server struct {
	mut     Mutations
	q       Queries
	users   Users
	sweeper Sweeper
	signKey []byte
	admins  map[string]bool
	lim     limiter.Limiter
}

// New constructs a gRPC server with injected services.
func New(d Deps) *Server {
	admins := make(map[string]bool, len(d.Admins))
	for _, a := range d.Admins {
		if email, err := model.NormalizeUserID(a); err == nil {
			admins[email] = true
		}
	}
	return &Server{
		mut:     d.Mutations,
		q:       d.Queries,
		users:   d.Users,
		sweeper: d.Sweeper,
		signKey: d.SignKey,
		admins:  admins,
		lim:     d.Limiter,
	}
}

type handlerFunc func(s *Server, ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error)

type route struct {
	admin bool
	h     handlerFunc
}

var routes = map[string]route{
	"AddTags":       {h: (*Server).addTags},
	"RemoveTags":    {h: (*Server).removeTags},
	"RemoveAllTags": {h: (*Server).removeAllTags},
	"SaveVideos":    {h: (*Server).saveVideos},
	"RemoveVideos":  {h: (*Server).removeVideos},
	"DeleteAccount": {h: (*Server).deleteAccount},
	"EnsureUser":    {h: (*Server).ensureUser},
	"GetUser":       {h: (*Server).getUser},

	"ListTags":       {h: (*Server).listTags},
	"ListVideoTags":  {h: (*Server).listVideoTags},
	"ListVideos":     {h: (*Server).listVideos},
	"GetVideo":       {h: (*Server).getVideo},
	"ListGlobalTags": {h: (*Server).listGlobalTags},

	"RemoveVideosGlobally": {admin: true, h: (*Server).removeVideosGlobally},
	"RefreshVideos":        {admin: true, h: (*Server).refreshVideos},
	"Reconcile":            {admin: true, h: (*Server).reconcile},
}

// call authenticates, authorizes and dispatches one method.
func (s *Server) call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	r, ok := routes[method]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
	user, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if r.admin && !s.admins[user] {
		return nil, status.Error(codes.PermissionDenied, "admin only")
	}
	out, err := r.h(s, WithUser(ctx, user), user, in)
	if err != nil {
		return nil, toStatus(method, err)
	}
	return out, nil
}

// toStatus maps domain errors onto gRPC codes. Internal details are not leaked.
func toStatus(method string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, errs.ErrInvalidInput),
		errors.Is(err, errs.ErrReservedTag),
		errors.Is(err, errs.ErrInvalidVideoID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrInUse):
		return status.Error(codes.Aborted, "concurrent update, retry")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "no auth")
	case errors.Is(err, errs.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	default:
		return status.Errorf(codes.Internal, "%s failed", strings.ToLower(method))
	}
}

// --- Mutations ---

func (s *Server) addTags(ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error) {
	tags, videos, err := tagsAndVideos(in)
	if err != nil {
		return nil, err
	}
	res, err := s.mut.AddTagsToVideos(ctx, user, tags, videos)
	if err != nil {
		return nil, err
	}
	return convert.FromBatchResult(res), nil
}

func (s *Server) removeTags(ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error) {
	tags, videos, err := tagsAndVideos(in)
	if err != nil {
		return nil, err
	}
	res, err := s.mut.RemoveTagsFromVideos(ctx, user, tags, videos)
	if err != nil {
		return nil, err
	}
	return convert.FromRemoval(res), nil
}

func (s *Server) removeAllTags(ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error) {
	videos, err := convert.Strings(in, "videos")
	if err != nil {
		return nil, err
	}
	res, err := s.mut.RemoveAllTagsFromVideos(ctx, user, videos)
	if err != nil {
		return nil, err
	}
	return convert.FromRemoval(res), nil
}

func (s *Server) saveVideos(ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error) {
	videos, err := convert.Strings(in, "videos")
	if err != nil {
		return nil, err
	}
	res, err := s.mut.SaveVideos(ctx, user, videos)
	if err != nil {
		return nil, err
	}
	return convert.FromBatchResult(res), nil
}

func (s *Server) removeVideos(ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error) {
	videos, err := convert.Strings(in, "videos")
	if err != nil {
		return nil, err
	}
	res, err := s.mut.RemoveVideosFromUser(ctx, user, videos)
	if err != nil {
		return nil, err
	}
	return convert.FromRemoval(res), nil
}

func (s *Server) deleteAccount(ctx context.Context, user string, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.mut.RemoveUserEntirely(ctx, user)
	if err != nil {
		return nil, err
	}
	return convert.FromRemoval(res), nil
}

// ensureUser upserts the token holder; only name and picture come from the request.
func (s *Server) ensureUser(ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error) {
	name, err := convert.String(in, "name")
	if err != nil {
		return nil, err
	}
	pic, err := convert.String(in, "picture_url")
	if err != nil {
		return nil, err
	}
	u, err := s.users.EnsureUser(ctx, model.User{Email: user, Name: name, PictureURL: pic})
	if err != nil {
		return nil, err
	}
	return convert.FromUser(u), nil
}

func (s *Server) getUser(ctx context.Context, user string, _ *structpb.Struct) (*structpb.Struct, error) {
	u, err := s.users.User(ctx, user)
	if err != nil {
		return nil, err
	}
	return convert.FromUser(u), nil
}

// --- Queries ---

func (s *Server) listTags(ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error) {
	q, err := convert.TagQuery(in)
	if err != nil {
		return nil, err
	}
	tags, err := s.q.TagsOfUser(ctx, user, q)
	if err != nil {
		return nil, err
	}
	return convert.FromStrings("tags", tags), nil
}

func (s *Server) listVideoTags(ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error) {
	video, err := convert.String(in, "video")
	if err != nil {
		return nil, err
	}
	tags, err := s.q.TagsOfVideo(ctx, user, video)
	if err != nil {
		return nil, err
	}
	return convert.FromStrings("tags", tags), nil
}

func (s *Server) listVideos(ctx context.Context, user string, in *structpb.Struct) (*structpb.Struct, error) {
	q, err := convert.VideoQuery(in)
	if err != nil {
		return nil, err
	}
	videos, err := s.q.VideosOfUser(ctx, user, q)
	if err != nil {
		return nil, err
	}
	return convert.FromStrings("videos", videos), nil
}

func (s *Server) getVideo(ctx context.Context, _ string, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.String(in, "id")
	if err != nil {
		return nil, err
	}
	v, err := s.q.Video(ctx, id)
	if err != nil {
		return nil, err
	}
	return convert.FromVideo(v), nil
}

func (s *Server) listGlobalTags(ctx context.Context, _ string, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := convert.Page(in)
	if err != nil {
		return nil, err
	}
	tcs, err := s.q.GlobalTags(ctx, p)
	if err != nil {
		return nil, err
	}
	return convert.FromTagCounts(tcs), nil
}

// --- Admin ---

func (s *Server) removeVideosGlobally(ctx context.Context, _ string, in *structpb.Struct) (*structpb.Struct, error) {
	videos, err := convert.Strings(in, "videos")
	if err != nil {
		return nil, err
	}
	res, err := s.mut.RemoveVideosGlobally(ctx, videos)
	if err != nil {
		return nil, err
	}
	return convert.FromRemoval(res), nil
}

func (s *Server) refreshVideos(ctx context.Context, _ string, in *structpb.Struct) (*structpb.Struct, error) {
	videos, err := convert.Strings(in, "videos")
	if err != nil {
		return nil, err
	}
	res, err := s.mut.RefreshVideos(ctx, videos)
	if err != nil {
		return nil, err
	}
	return convert.FromBatchResult(res), nil
}

func (s *Server) reconcile(ctx context.Context, _ string, _ *structpb.Struct) (*structpb.Struct, error) {
	rep, err := s.sweeper.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	return convert.FromReconcileReport(rep), nil
}

func tagsAndVideos(in *structpb.Struct) ([]string, []string, error) {
	tags, err := convert.Strings(in, "tags")
	if err != nil {
		return nil, nil, err
	}
	videos, err := convert.Strings(in, "videos")
	if err != nil {
		return nil, nil, err
	}
	return tags, videos, nil
}

// --- Auth ---

func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// authenticate verifies the caller, counting failures per peer when a limiter
// is configured. Limiter errors fail open.
func (s *Server) authenticate(ctx context.Context) (string, error) {
	var key []byte
	if s.lim != nil {
		key = limiter.HashIP(remoteIP(ctx))
		if ok, retry, err := s.lim.Allow(ctx, key); err == nil && !ok {
			return "", status.Errorf(codes.ResourceExhausted, "too many failed attempts, retry in %s", retry.Round(time.Second))
		}
	}
	user, err := s.userFromCtx(ctx)
	if err != nil {
		if s.lim != nil {
			_, _, _ = s.lim.Failure(ctx, key)
		}
		return "", status.Error(codes.Unauthenticated, "no auth")
	}
	return user, nil
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// userFromCtx: extract "authorization: Bearer <JWT>", verify HS256, return the
// normalized email from the email claim or, failing that, the subject.
func (s *Server) userFromCtx(ctx context.Context) (string, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return "", err
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(tok, &c, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid token")
	}

	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&c); err != nil {
		return "", errors.New("token expired or not valid yet")
	}

	raw := c.Email
	if raw == "" {
		raw = c.Subject
	}
	email, err := model.NormalizeUserID(raw)
	if err != nil {
		return "", errors.New("bad subject")
	}
	return email, nil
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
