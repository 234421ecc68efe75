package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pastportals/backend/internal/search"
)

var errHistoryDisabled = errors.New("lookup history is not configured")

// WikipediaHandler serves the year summary and search endpoints.
type WikipediaHandler struct {
	Years   YearSummaries
	Search  Searcher
	History HistoryReader
}

func (h *WikipediaHandler) Register(g *echo.Group) {
	g.GET("/wikipedia/year/:year", h.year)
	g.GET("/wikipedia/events/search", h.searchEvents)
	g.GET("/wikipedia/people/search", h.searchPeople)
	g.GET("/wikipedia/people/era/:era", h.peopleByEra)
	g.GET("/wikipedia/day/:month/:day", h.day)
	g.GET("/wikipedia/details/:query", h.details)
	g.GET("/wikipedia/history", h.history)
}

func (h *WikipediaHandler) year(c echo.Context) error {
	year, err := h.Years.ParseYear(c.Param("year"))
	if err != nil {
		return err
	}
	summary, err := h.Years.Build(c.Request().Context(), year)
	if err != nil {
		return fail("Failed to fetch Indian year-based events.", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "yearSummary": summary})
}

func (h *WikipediaHandler) searchEvents(c echo.Context) error {
	events, total, err := h.Search.Events(c.Request().Context(), c.QueryParam("query"), c.QueryParam("year"))
	if err != nil {
		return fail("Failed to search events.", err)
	}
	resp := map[string]any{"success": true, "events": events, "totalFound": total}
	if total == 0 {
		resp["events"] = []search.Result{}
		resp["message"] = "No events found for your search query."
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *WikipediaHandler) searchPeople(c echo.Context) error {
	people, total, err := h.Search.People(c.Request().Context(), c.QueryParam("query"), c.QueryParam("era"), c.QueryParam("occupation"))
	if err != nil {
		return fail("Failed to search people.", err)
	}
	resp := map[string]any{"success": true, "people": people, "totalFound": total}
	if total == 0 {
		resp["people"] = []search.Person{}
		resp["message"] = "No people found for your search query."
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *WikipediaHandler) peopleByEra(c echo.Context) error {
	era := c.Param("era")
	people, err := h.Search.PeopleByEra(c.Request().Context(), era)
	if err != nil {
		return fail("Failed to fetch people by era.", err)
	}
	if people == nil {
		people = []search.EraPerson{}
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "era": era, "people": people, "totalFound": len(people)})
}

func (h *WikipediaHandler) day(c echo.Context) error {
	month, day, err := search.ParseDate(c.Param("month"), c.Param("day"))
	if err != nil {
		return err
	}
	events, err := h.Search.DayEvents(c.Request().Context(), month, day)
	if err != nil {
		return fail("Failed to fetch daily events.", err)
	}
	if events == nil {
		events = []search.DayEvent{}
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "events": events})
}

func (h *WikipediaHandler) details(c echo.Context) error {
	d, err := h.Search.Details(c.Request().Context(), c.Param("query"))
	if err != nil {
		return fail("Failed to fetch event/person details.", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "eventData": d})
}

func (h *WikipediaHandler) history(c echo.Context) error {
	if h.History == nil {
		return errHistoryDisabled
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	records, err := h.History.RecentYearLookups(c.Request().Context(), limit)
	if err != nil {
		return fail("Failed to fetch lookup history.", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "history": records})
}
