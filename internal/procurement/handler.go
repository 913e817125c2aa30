package procurement

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
)

// Handler wires HTTP endpoints for purchase orders and goods receipts.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	receipts  *ReceiptService
	validator *validator.Validate
}

// NewHandler constructs the procurement handler.
func NewHandler(logger *slog.Logger, service *Service, receipts *ReceiptService) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		receipts:  receipts,
		validator: validator.New(),
	}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/pos", func(r chi.Router) {
		r.Post("/", h.handleCreatePO)
		r.Get("/", h.handleListPOs)
		r.Get("/{poNumber}", h.handleGetPO)
		r.Put("/{poNumber}", h.handleUpdatePO)
		r.Delete("/{poNumber}", h.handleDeletePO)
		r.Post("/{poNumber}/approve", h.handleApprovePO)
	})
	r.Route("/grns", func(r chi.Router) {
		r.Post("/", h.handleCreateGRN)
		r.Get("/", h.handleListGRNs)
		r.Get("/{grnNumber}", h.handleGetGRN)
		r.Patch("/{grnNumber}/qc", h.handleUpdateQC)
	})
}

type poLineRequest struct {
	SKU       string  `json:"sku" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
}

type createPORequest struct {
	PONumber string          `json:"po_number"`
	VendorID int64           `json:"vendor_id" validate:"required,gt=0"`
	RaisedAt string          `json:"raised_at"`
	Lines    []poLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreatePO(w http.ResponseWriter, r *http.Request) {
	var req createPORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	input := CreatePOInput{PONumber: req.PONumber, VendorID: req.VendorID}
	if req.RaisedAt != "" {
		t, err := time.Parse("2006-01-02", req.RaisedAt)
		if err != nil {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"raised_at": "invalid date"})
			return
		}
		input.RaisedAt = t
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, POLineInput{SKU: line.SKU, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	po, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create po", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, toPOResponse(po))
}

type updatePORequest struct {
	VendorID int64           `json:"vendor_id"`
	Lines    []poLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleUpdatePO(w http.ResponseWriter, r *http.Request) {
	var req updatePORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	input := UpdatePOInput{VendorID: req.VendorID}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, POLineInput{SKU: line.SKU, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	po, err := h.service.Update(r.Context(), chi.URLParam(r, "poNumber"), input)
	if err != nil {
		h.logger.Error("update po", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) handleApprovePO(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.Approve(r.Context(), chi.URLParam(r, "poNumber"))
	if err != nil {
		h.logger.Error("approve po", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) handleDeletePO(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "poNumber")); err != nil {
		h.logger.Error("delete po", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]string{"po_number": chi.URLParam(r, "poNumber")})
}

func (h *Handler) handleGetPO(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.Get(r.Context(), chi.URLParam(r, "poNumber"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) handleListPOs(w http.ResponseWriter, r *http.Request) {
	filter := POFilter{Status: POStatus(r.URL.Query().Get("status"))}
	var fields map[string]string
	filter.StartDate, filter.EndDate, filter.Limit, filter.Offset, fields = listParams(r)
	if len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	pos, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list pos", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]poResponse, 0, len(pos))
	for _, po := range pos {
		items = append(items, toPOResponse(po))
	}
	httpx.OK(w, http.StatusOK, listResponse[poResponse]{Items: items, Total: total})
}

type grnLineRequest struct {
	LineNo      int     `json:"line_no" validate:"required,gt=0"`
	ReceivedQty float64 `json:"received_qty" validate:"required,gt=0"`
	AcceptedQty float64 `json:"accepted_qty" validate:"gte=0"`
	RejectedQty float64 `json:"rejected_qty" validate:"gte=0"`
	Location    string  `json:"location"`
}

type createGRNRequest struct {
	PONumber        string           `json:"po_number" validate:"required"`
	DeliveryChallan string           `json:"delivery_challan" validate:"required"`
	TransporterName string           `json:"transporter_name"`
	VehicleNumber   string           `json:"vehicle_number"`
	ReceivedAt      string           `json:"received_at"`
	Remarks         string           `json:"remarks"`
	ScannedChallan  string           `json:"scanned_challan"`
	QCStatus        string           `json:"qc_status" validate:"required,oneof=excellent moderate bad"`
	Lines           []grnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreateGRN(w http.ResponseWriter, r *http.Request) {
	var req createGRNRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	input := CreateGRNInput{
		PONumber:        req.PONumber,
		DeliveryChallan: req.DeliveryChallan,
		TransporterName: req.TransporterName,
		VehicleNumber:   req.VehicleNumber,
		Remarks:         req.Remarks,
		ScannedChallan:  req.ScannedChallan,
		QCStatus:        QCStatus(req.QCStatus),
	}
	if req.ReceivedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			httpx.FailFields(w, http.StatusBadRequest, "validation failed", map[string]string{"received_at": "invalid timestamp"})
			return
		}
		input.ReceivedAt = t
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, GRNLineInput{
			LineNo:      line.LineNo,
			ReceivedQty: line.ReceivedQty,
			AcceptedQty: line.AcceptedQty,
			RejectedQty: line.RejectedQty,
			Location:    line.Location,
		})
	}
	grn, err := h.receipts.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create grn", slog.String("po", req.PONumber), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, toGRNResponse(grn))
}

type updateQCRequest struct {
	QCStatus string `json:"qc_status" validate:"required,oneof=excellent moderate bad"`
	Remarks  string `json:"remarks"`
}

func (h *Handler) handleUpdateQC(w http.ResponseWriter, r *http.Request) {
	var req updateQCRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := h.validationFields(req); len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	grn, err := h.receipts.UpdateQC(r.Context(), chi.URLParam(r, "grnNumber"), QCStatus(req.QCStatus), req.Remarks)
	if err != nil {
		h.logger.Error("update qc", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toGRNResponse(grn))
}

func (h *Handler) handleGetGRN(w http.ResponseWriter, r *http.Request) {
	grn, err := h.receipts.Get(r.Context(), chi.URLParam(r, "grnNumber"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toGRNResponse(grn))
}

func (h *Handler) handleListGRNs(w http.ResponseWriter, r *http.Request) {
	filter := GRNFilter{
		QCStatus: QCStatus(r.URL.Query().Get("qc_status")),
		PONumber: r.URL.Query().Get("po_number"),
	}
	var fields map[string]string
	filter.StartDate, filter.EndDate, filter.Limit, filter.Offset, fields = listParams(r)
	if len(fields) > 0 {
		httpx.FailFields(w, http.StatusBadRequest, "validation failed", fields)
		return
	}
	grns, total, err := h.receipts.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list grns", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]grnResponse, 0, len(grns))
	for _, grn := range grns {
		items = append(items, toGRNResponse(grn))
	}
	httpx.OK(w, http.StatusOK, listResponse[grnResponse]{Items: items, Total: total})
}

func (h *Handler) validationFields(req any) map[string]string {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	for _, fieldErr := range err.(validator.ValidationErrors) {
		fields[strings.ToLower(fieldErr.Field())] = "failed " + fieldErr.Tag() + " validation"
	}
	return fields
}

func listParams(r *http.Request) (start, end time.Time, limit, offset int, fields map[string]string) {
	q := r.URL.Query()
	fields = make(map[string]string)
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			fields["start_date"] = "invalid date"
		} else {
			start = t
		}
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			fields["end_date"] = "invalid date"
		} else {
			end = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["limit"] = "invalid number"
		} else {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["offset"] = "invalid number"
		} else {
			offset = n
		}
	}
	if len(fields) == 0 {
		fields = nil
	}
	return start, end, limit, offset, fields
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type poLineResponse struct {
	LineNo      int     `json:"line_no"`
	SKU         string  `json:"sku"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	Quantity    float64 `json:"quantity"`
	UOM         string  `json:"uom"`
	UnitPrice   float64 `json:"unit_price"`
}

type poResponse struct {
	PONumber   string           `json:"po_number"`
	Status     string           `json:"status"`
	RaisedAt   time.Time        `json:"raised_at"`
	Vendor     VendorSnapshot   `json:"vendor"`
	Lines      []poLineResponse `json:"lines"`
	CreatedBy  string           `json:"created_by,omitempty"`
	ApprovedBy string           `json:"approved_by,omitempty"`
	ApprovedAt *time.Time       `json:"approved_at,omitempty"`
}

func toPOResponse(po PurchaseOrder) poResponse {
	resp := poResponse{
		PONumber:   po.PONumber,
		Status:     string(po.Status),
		RaisedAt:   po.RaisedAt,
		Vendor:     po.Vendor,
		Lines:      make([]poLineResponse, 0, len(po.Lines)),
		CreatedBy:  po.CreatedBy,
		ApprovedBy: po.ApprovedBy,
	}
	if !po.ApprovedAt.IsZero() && po.ApprovedAt.Unix() != 0 {
		t := po.ApprovedAt
		resp.ApprovedAt = &t
	}
	for _, line := range po.Lines {
		resp.Lines = append(resp.Lines, poLineResponse{
			LineNo:      line.LineNo,
			SKU:         line.SKU,
			ProductName: line.ProductName,
			Category:    line.Category,
			Quantity:    line.Quantity,
			UOM:         line.UOM,
			UnitPrice:   line.UnitPrice,
		})
	}
	return resp
}

type grnLineResponse struct {
	LineNo      int     `json:"line_no"`
	SKU         string  `json:"sku"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	OrderedQty  float64 `json:"ordered_qty"`
	ReceivedQty float64 `json:"received_qty"`
	AcceptedQty float64 `json:"accepted_qty"`
	RejectedQty float64 `json:"rejected_qty"`
	UnitPrice   float64 `json:"unit_price"`
	Location    string  `json:"location,omitempty"`
}

type grnResponse struct {
	GRNNumber       string            `json:"grn_number"`
	PONumber        string            `json:"po_number"`
	DeliveryChallan string            `json:"delivery_challan"`
	TransporterName string            `json:"transporter_name,omitempty"`
	VehicleNumber   string            `json:"vehicle_number,omitempty"`
	ReceivedAt      time.Time         `json:"received_at"`
	Remarks         string            `json:"remarks,omitempty"`
	ScannedChallan  string            `json:"scanned_challan,omitempty"`
	QCStatus        string            `json:"qc_status"`
	Lines           []grnLineResponse `json:"lines"`
	CreatedBy       string            `json:"created_by,omitempty"`
}

func toGRNResponse(grn GoodsReceipt) grnResponse {
	resp := grnResponse{
		GRNNumber:       grn.GRNNumber,
		PONumber:        grn.PONumber,
		DeliveryChallan: grn.DeliveryChallan,
		TransporterName: grn.TransporterName,
		VehicleNumber:   grn.VehicleNumber,
		ReceivedAt:      grn.ReceivedAt,
		Remarks:         grn.Remarks,
		ScannedChallan:  grn.ScannedChallan,
		QCStatus:        string(grn.QCStatus),
		Lines:           make([]grnLineResponse, 0, len(grn.Lines)),
		CreatedBy:       grn.CreatedBy,
	}
	for _, line := range grn.Lines {
		resp.Lines = append(resp.Lines, grnLineResponse{
			LineNo:      line.LineNo,
			SKU:         line.SKU,
			ProductName: line.ProductName,
			Category:    line.Category,
			OrderedQty:  line.OrderedQty,
			ReceivedQty: line.ReceivedQty,
			AcceptedQty: line.AcceptedQty,
			RejectedQty: line.RejectedQty,
			UnitPrice:   line.UnitPrice,
			Location:    line.Location,
		})
	}
	return resp
}
