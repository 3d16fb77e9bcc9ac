package http

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/core/usecases"
	"github.com/samirrijal/surveyplot/internal/pkg/labels"
)

const mimeGeoJSON = "application/geo+json"

// traverseBody is the request body of the traverse endpoints.
type traverseBody struct {
	Segments  []domain.SegmentInput `json:"segments"`
	Auto      bool                  `json:"auto"`
	AutoClose *bool                 `json:"auto_close"`
}

// plotBody describes a full plot: manual inputs plus imported rings in
// geographic coordinates.
type plotBody struct {
	Name                string                `json:"name"`
	Segments            []domain.SegmentInput `json:"segments"`
	Rings               [][]domain.GeoPoint   `json:"rings"`
	SourceName          string                `json:"source_name"`
	ManualMirrorsImport bool                  `json:"manual_mirrors_import"`
	AutoClose           *bool                 `json:"auto_close"`
}

func autoClose(v *bool) bool { return v == nil || *v }

// resolve builds the traverse and workspace a plot body describes.
func (b *plotBody) resolve(c *fiber.Ctx, deps *Dependencies) (*domain.TraverseResult, *domain.Workspace, error) {
	var manual *domain.TraverseResult
	if len(b.Segments) > 0 {
		res, err := deps.Survey.ComputeTraverse(c.UserContext(), usecases.TraverseRequest{Segments: b.Segments})
		if err != nil {
			return nil, nil, err
		}
		manual = res
	}
	var ws *domain.Workspace
	if len(b.Rings) > 0 {
		ws = usecases.RestoreWorkspace(b.Rings, b.SourceName)
		ws.ManualMirrorsImport = b.ManualMirrorsImport
	}
	return manual, ws, nil
}

// traverseResponse is a traverse with its table and label layout.
type traverseResponse struct {
	*domain.TraverseResult
	Table     []domain.TableRow       `json:"table"`
	View      labels.View             `json:"view"`
	Labels    []domain.LabelPlacement `json:"labels"`
	AreaLabel string                  `json:"area_label,omitempty"`
}

// TraverseHandler builds a traverse from segment records.
func TraverseHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body traverseBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		res, err := deps.Survey.ComputeTraverse(c.UserContext(), usecases.TraverseRequest{
			Segments: body.Segments,
			Auto:     body.Auto,
		})
		if domain.IsSuppressible(err) {
			return c.SendStatus(fiber.StatusNoContent)
		}
		if err != nil {
			return respondError(c, err)
		}

		closeRing := autoClose(body.AutoClose)
		render := deps.Survey.Render(usecases.RenderRequest{Manual: res, AutoClose: closeRing})
		out := traverseResponse{
			TraverseResult: res,
			Table:          render.Table,
			View:           render.View,
		}
		if len(render.Rings) > 0 {
			out.Labels = render.Rings[0].Labels
			out.AreaLabel = render.Rings[0].AreaLabel
		}
		return c.JSON(out)
	}
}

// ParseBearingHandler parses a quadrant bearing string.
func ParseBearingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Bearing string `json:"bearing"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if strings.TrimSpace(body.Bearing) == "" {
			return errBadRequest(c, "bearing is required")
		}
		info, err := deps.Survey.ParseBearing(body.Bearing)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(info)
	}
}

// FormatBearingHandler canonicalizes ?azimuth= into a quadrant bearing.
func FormatBearingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Query("azimuth")
		if raw == "" {
			return errBadRequest(c, "azimuth query parameter is required")
		}
		az, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errBadRequest(c, "azimuth must be a number")
		}
		info, err := deps.Survey.FormatBearing(az)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(info)
	}
}

// GeodesicHandler returns distance and initial bearing between two points.
func GeodesicHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			From *domain.GeoPoint `json:"from"`
			To   *domain.GeoPoint `json:"to"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if body.From == nil || body.To == nil {
			return errBadRequest(c, "from and to are required")
		}
		st, err := deps.Survey.Geodesic(*body.From, *body.To)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(st)
	}
}

// ImportKMLHandler imports the KML document in the request body. With
// ?async=true the document is queued for the import worker instead and
// the request is answered with 202.
func ImportKMLHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if len(bytes.TrimSpace(body)) == 0 {
			return errBadRequest(c, "KML document body is required")
		}
		source := c.Query("source")

		if c.QueryBool("async", false) {
			if deps.Plots == nil {
				return errUnavailable(c, "asynchronous import is not available")
			}
			req, err := deps.Plots.RequestImport(c.UserContext(), string(body), source, c.Query("save_as"))
			if err != nil {
				return respondError(c, err)
			}
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"request_id":  req.RequestID,
				"source_name": req.SourceName,
				"save_as":     req.SaveAs,
			})
		}

		res, err := deps.Survey.ImportKML(c.UserContext(), bytes.NewReader(body), source)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"workspace": res.Workspace,
			"inputs":    res.Inputs,
			"totals":    res.Totals,
			"table":     usecases.BuildTable(nil, res.Workspace, true),
		})
	}
}

// MirrorLayerHandler converts an imported layer back into segment records.
func MirrorLayerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Rings [][]domain.GeoPoint `json:"rings"`
			Layer int                 `json:"layer"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		ws := usecases.RestoreWorkspace(body.Rings, "")
		inputs, err := usecases.MirrorLayer(ws, body.Layer)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"segments": inputs, "manual_mirrors_import": ws.ManualMirrorsImport})
	}
}

// RenderHandler fits the manual traverse and imported rings into the
// viewport and lays out their labels.
func RenderHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body plotBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		manual, ws, err := body.resolve(c, deps)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(deps.Survey.Render(usecases.RenderRequest{
			Manual:    manual,
			Workspace: ws,
			AutoClose: autoClose(body.AutoClose),
		}))
	}
}

// ExportScriptHandler returns a CAD command script.
func ExportScriptHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body plotBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		manual, ws, err := body.resolve(c, deps)
		if err != nil {
			return respondError(c, err)
		}
		var buf bytes.Buffer
		if err := usecases.ExportScript(&buf, manual, ws, autoClose(body.AutoClose)); err != nil {
			return respondError(c, err)
		}
		c.Attachment("traverse.scr")
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Send(buf.Bytes())
	}
}

// ExportGeoJSONHandler returns the imported rings as GeoJSON.
func ExportGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body plotBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		ws := usecases.RestoreWorkspace(body.Rings, body.SourceName)
		data, err := usecases.ExportGeoJSON(ws, autoClose(body.AutoClose))
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, mimeGeoJSON)
		return c.Send(data)
	}
}

// CreatePlotHandler saves a plot.
func CreatePlotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Plots == nil {
			return errUnavailable(c, "plot storage is not available")
		}
		var body plotBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		plot, err := deps.Plots.Save(c.UserContext(), usecases.SavePlotRequest{
			Name:       body.Name,
			Segments:   body.Segments,
			Rings:      body.Rings,
			SourceName: body.SourceName,
		})
		if err != nil {
			return respondError(c, err)
		}
		c.Location("/v1/plots/" + plot.ID)
		return c.Status(fiber.StatusCreated).JSON(plot)
	}
}

// plotSummary is a list entry.
type plotSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
}

// ListPlotsHandler returns saved plots, newest first.
func ListPlotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Plots == nil {
			return errUnavailable(c, "plot storage is not available")
		}
		offset, limit := pageParams(c)
		plots, total, err := deps.Plots.List(c.UserContext(), limit, offset)
		if err != nil {
			return respondError(c, err)
		}

		items := make([]plotSummary, 0, len(plots))
		for i := range plots {
			p := &plots[i]
			items = append(items, plotSummary{
				ID:        p.ID,
				Name:      p.Name,
				Tags:      p.Tags(),
				CreatedAt: p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: items, Pagination: pg})
	}
}

// GetPlotHandler loads a plot with its traverse and layers rebuilt.
func GetPlotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Plots == nil {
			return errUnavailable(c, "plot storage is not available")
		}
		loaded, err := deps.Plots.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"plot":      loaded.Plot,
			"traverse":  loaded.Traverse,
			"workspace": loaded.Workspace,
			"totals":    loaded.Totals,
			"table":     usecases.BuildTable(loaded.Traverse, loaded.Workspace, true),
		})
	}
}

// DeletePlotHandler removes a saved plot.
func DeletePlotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Plots == nil {
			return errUnavailable(c, "plot storage is not available")
		}
		if err := deps.Plots.Delete(c.UserContext(), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
