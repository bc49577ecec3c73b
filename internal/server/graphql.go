package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crmdash/crmdash/internal/auth"
	"github.com/crmdash/crmdash/internal/models"
)

// Error codes carried in extensions.code
const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeBadRequest      = "BAD_REQUEST"
	codeInternal        = "INTERNAL_SERVER_ERROR"
)

type graphQLRequest struct {
	OperationName string                     `json:"operationName"`
	Query         string                     `json:"query"`
	Variables     map[string]json.RawMessage `json:"variables"`
}

// gqlError is an error the resolver wants reported to the client as is
type gqlError struct {
	code    string
	message string
}

func (e *gqlError) Error() string {
	return e.code + ": " + e.message
}

func errUnauthenticated(message string) error {
	return &gqlError{code: codeUnauthenticated, message: message}
}

func errBadRequest(format string, args ...any) error {
	return &gqlError{code: codeBadRequest, message: fmt.Sprintf(format, args...)}
}

type resolver func(s *Server, c *gin.Context, vars map[string]json.RawMessage) (any, error)

// Resolvers keyed by root field
var resolvers = map[string]resolver{
	"login":      (*Server).resolveLogin,
	"me":         (*Server).resolveMe,
	"dealStages": (*Server).resolveDealStages,
	"events":     (*Server).resolveEvents,
}

// Operation names the dashboard sends, mapped to their root field
var operations = map[string]string{
	"Login":                           "login",
	"Me":                              "me",
	"DashboardDealsChart":             "dealStages",
	"DashboardCalendarUpcomingEvents": "events",
}

// Matches the first field of the selection set, skipping the operation header
var rootFieldPattern = regexp.MustCompile(`^\s*(?:(?:query|mutation)\b[^{]*)?\{\s*(\w+)`)

func rootField(req graphQLRequest) (string, bool) {
	if field, ok := operations[req.OperationName]; ok {
		return field, true
	}
	m := rootFieldPattern.FindStringSubmatch(req.Query)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (s *Server) graphql(c *gin.Context) {
	var req graphQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, errBadRequest("Invalid request body"))
		return
	}

	field, ok := rootField(req)
	if !ok {
		s.writeError(c, http.StatusBadRequest, errBadRequest("Could not determine operation"))
		return
	}

	resolve, ok := resolvers[field]
	if !ok {
		s.writeError(c, http.StatusBadRequest, errBadRequest("Unknown field '%s'", field))
		return
	}

	data, err := resolve(s, c, req.Variables)
	if err != nil {
		s.writeError(c, http.StatusOK, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{field: data}})
}

func (s *Server) writeError(c *gin.Context, status int, err error) {
	var gerr *gqlError
	if !errors.As(err, &gerr) {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Resolver failed")
		gerr = &gqlError{code: codeInternal, message: "Internal server error"}
	}

	c.JSON(status, gin.H{
		"data": nil,
		"errors": []gin.H{{
			"message":    gerr.message,
			"extensions": gin.H{"code": gerr.code},
		}},
	})
}

func decodeVar(vars map[string]json.RawMessage, name string, v any) error {
	raw, ok := vars[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadRequest("Variable '$%s' is invalid: %v", name, err)
	}
	return nil
}

func requireSession(c *gin.Context) (*auth.SessionData, error) {
	session, ok := GetSessionData(c)
	if !ok {
		return nil, errUnauthenticated("Unauthorized")
	}
	return session, nil
}

type loginInput struct {
	Email string `json:"email" validate:"required,email"`
}

type loginPayload struct {
	AccessToken string `json:"accessToken"`
}

func (s *Server) resolveLogin(c *gin.Context, vars map[string]json.RawMessage) (any, error) {
	var input loginInput
	if err := decodeVar(vars, "email", &input.Email); err != nil {
		return nil, err
	}
	input.Email = strings.TrimSpace(input.Email)

	if err := s.validator.Struct(input); err != nil {
		return nil, errBadRequest("Invalid email address")
	}

	var user models.User
	if err := s.db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Str("email", input.Email).Msg("Login attempt for unknown user")
			return nil, errUnauthenticated("Invalid email or password")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")
	return loginPayload{AccessToken: token}, nil
}

func (s *Server) resolveMe(c *gin.Context, _ map[string]json.RawMessage) (any, error) {
	session, err := requireSession(c)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := models.FindByID(s.db, session.UserID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUnauthenticated("Unauthorized")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

type stringComparison struct {
	Eq *string  `json:"eq"`
	In []string `json:"in"`
}

type dateComparison struct {
	Gt  *string `json:"gt"`
	Gte *string `json:"gte"`
	Lt  *string `json:"lt"`
	Lte *string `json:"lte"`
}

type sortField struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type offsetPaging struct {
	Limit  *int `json:"limit"`
	Offset *int `json:"offset"`
}

type connection[T any] struct {
	Nodes      []T   `json:"nodes"`
	TotalCount int64 `json:"totalCount"`
}

func applyString(q *gorm.DB, column string, cmp *stringComparison) *gorm.DB {
	if cmp == nil {
		return q
	}
	if cmp.Eq != nil {
		q = q.Where(column+" = ?", *cmp.Eq)
	}
	if cmp.In != nil {
		q = q.Where(column+" IN ?", cmp.In)
	}
	return q
}

// parseDate accepts RFC 3339 timestamps and plain dates (midnight UTC)
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, errBadRequest("Invalid date '%s'", value)
	}
	return t, nil
}

func applyDate(q *gorm.DB, column string, cmp *dateComparison) (*gorm.DB, error) {
	if cmp == nil {
		return q, nil
	}
	ops := []struct {
		op    string
		value *string
	}{
		{">", cmp.Gt}, {">=", cmp.Gte}, {"<", cmp.Lt}, {"<=", cmp.Lte},
	}
	for _, o := range ops {
		if o.value == nil {
			continue
		}
		t, err := parseDate(*o.value)
		if err != nil {
			return nil, err
		}
		q = q.Where(column+" "+o.op+" ?", t)
	}
	return q, nil
}

// applySorting maps GraphQL sort fields onto whitelisted columns
func applySorting(q *gorm.DB, sorting []sortField, columns map[string]string) (*gorm.DB, error) {
	for _, sf := range sorting {
		column, ok := columns[sf.Field]
		if !ok {
			return nil, errBadRequest("Cannot sort by '%s'", sf.Field)
		}
		var desc bool
		switch strings.ToUpper(sf.Direction) {
		case "", "ASC":
		case "DESC":
			desc = true
		default:
			return nil, errBadRequest("Invalid sort direction '%s'", sf.Direction)
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	}
	return q, nil
}

func applyPaging(q *gorm.DB, paging offsetPaging) (*gorm.DB, error) {
	if paging.Limit != nil {
		if *paging.Limit < 0 {
			return nil, errBadRequest("Paging limit must not be negative")
		}
		q = q.Limit(*paging.Limit)
	}
	if paging.Offset != nil {
		if *paging.Offset < 0 {
			return nil, errBadRequest("Paging offset must not be negative")
		}
		q = q.Offset(*paging.Offset)
	}
	return q, nil
}

type dealStageFilter struct {
	Title *stringComparison `json:"title"`
}

type dealGroupBy struct {
	CloseDateMonth *int `json:"closeDateMonth"`
	CloseDateYear  *int `json:"closeDateYear"`
}

type dealSum struct {
	Value float64 `json:"value"`
}

type dealsAggregate struct {
	GroupBy dealGroupBy `json:"groupBy"`
	Sum     dealSum     `json:"sum"`
}

type dealStageNode struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	DealsAggregate []dealsAggregate `json:"dealsAggregate"`
}

var dealStageSortColumns = map[string]string{
	"id":        "id",
	"title":     "title",
	"createdAt": "created_at",
}

func (s *Server) resolveDealStages(c *gin.Context, vars map[string]json.RawMessage) (any, error) {
	if _, err := requireSession(c); err != nil {
		return nil, err
	}

	var (
		filter  dealStageFilter
		sorting []sortField
		paging  offsetPaging
	)
	for name, v := range map[string]any{"filter": &filter, "sorting": &sorting, "paging": &paging} {
		if err := decodeVar(vars, name, v); err != nil {
			return nil, err
		}
	}

	q := applyString(s.db.WithContext(c.Request.Context()).Model(&models.DealStage{}), "title", filter.Title).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count deal stages: %w", err)
	}

	q, err := applySorting(q, sorting, dealStageSortColumns)
	if err != nil {
		return nil, err
	}
	if q, err = applyPaging(q, paging); err != nil {
		return nil, err
	}

	var stages []models.DealStage
	if err := q.Find(&stages).Error; err != nil {
		return nil, fmt.Errorf("failed to list deal stages: %w", err)
	}

	aggregates, err := s.aggregateDeals(c, stages)
	if err != nil {
		return nil, err
	}

	nodes := make([]dealStageNode, 0, len(stages))
	for _, stage := range stages {
		groups := aggregates[stage.ID]
		if groups == nil {
			groups = []dealsAggregate{}
		}
		nodes = append(nodes, dealStageNode{ID: stage.ID, Title: stage.Title, DealsAggregate: groups})
	}

	return connection[dealStageNode]{Nodes: nodes, TotalCount: total}, nil
}

// aggregateDeals sums deal values per stage and close month
func (s *Server) aggregateDeals(c *gin.Context, stages []models.DealStage) (map[string][]dealsAggregate, error) {
	result := make(map[string][]dealsAggregate, len(stages))
	if len(stages) == 0 {
		return result, nil
	}

	ids := make([]string, len(stages))
	for i, stage := range stages {
		ids[i] = stage.ID
	}

	var rows []struct {
		StageID        string
		CloseDateMonth *int
		CloseDateYear  *int
		Total          float64
	}
	err := s.db.WithContext(c.Request.Context()).
		Model(&models.Deal{}).
		Select("stage_id, close_date_month, close_date_year, SUM(value) AS total").
		Where("stage_id IN ?", ids).
		Group("stage_id, close_date_year, close_date_month").
		Order("close_date_year, close_date_month").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate deals: %w", err)
	}

	for _, row := range rows {
		result[row.StageID] = append(result[row.StageID], dealsAggregate{
			GroupBy: dealGroupBy{CloseDateMonth: row.CloseDateMonth, CloseDateYear: row.CloseDateYear},
			Sum:     dealSum{Value: row.Total},
		})
	}
	return result, nil
}

type eventFilter struct {
	Title     *stringComparison `json:"title"`
	StartDate *dateComparison   `json:"startDate"`
	EndDate   *dateComparison   `json:"endDate"`
}

var eventSortColumns = map[string]string{
	"id":        "id",
	"title":     "title",
	"startDate": "start_date",
	"endDate":   "end_date",
}

func (s *Server) resolveEvents(c *gin.Context, vars map[string]json.RawMessage) (any, error) {
	if _, err := requireSession(c); err != nil {
		return nil, err
	}

	var (
		filter  eventFilter
		sorting []sortField
		paging  offsetPaging
	)
	for name, v := range map[string]any{"filter": &filter, "sorting": &sorting, "paging": &paging} {
		if err := decodeVar(vars, name, v); err != nil {
			return nil, err
		}
	}

	q := applyString(s.db.WithContext(c.Request.Context()).Model(&models.Event{}), "title", filter.Title)
	q, err := applyDate(q, "start_date", filter.StartDate)
	if err != nil {
		return nil, err
	}
	if q, err = applyDate(q, "end_date", filter.EndDate); err != nil {
		return nil, err
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	if q, err = applySorting(q, sorting, eventSortColumns); err != nil {
		return nil, err
	}
	if q, err = applyPaging(q, paging); err != nil {
		return nil, err
	}

	events := []models.Event{}
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return connection[models.Event]{Nodes: events, TotalCount: total}, nil
}
