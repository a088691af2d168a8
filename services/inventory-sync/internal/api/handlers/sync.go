package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/pkg/utils"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// SyncHandler обработчик запросов конвейера синхронизации остатков
type SyncHandler struct {
	syncService services.SyncServiceInterface
	logger      interfaces.LoggerPort
}

// NewSyncHandler создает новый обработчик синхронизации
func NewSyncHandler(syncService services.SyncServiceInterface, logger interfaces.LoggerPort) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// response представляет структуру успешного ответа для чтения задач
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type triggerRequest struct {
	WarehouseID *int `json:"warehouse_id,omitempty"`
}

type abortRequest struct {
	SnapshotID string `json:"snapshot_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// TriggerSnapshot запрашивает снапшоты остатков
//
//	@Summary	Запросить снапшоты остатков
//	@Tags		sync
//	@Accept		json
//	@Produce	json
//	@Param		request	body		triggerRequest	false	"Склад; без него - все активные"
//	@Success	200		{object}	services.TriggerResult
//	@Failure	401		{object}	errorResponse
//	@Router		/sync/trigger [post]
func (h *SyncHandler) TriggerSnapshot(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.syncService.TriggerSnapshot(r.Context(), req.WarehouseID)
	if err != nil {
		h.fail(w, r, err, "Ошибка запроса снапшотов")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// PollJobs проверяет статусы активных задач и импортирует готовые снапшоты
//
//	@Summary	Опросить статусы активных задач
//	@Tags		sync
//	@Produce	json
//	@Success	200	{object}	services.PollResult
//	@Failure	401	{object}	errorResponse
//	@Router		/sync/poll [post]
func (h *SyncHandler) PollJobs(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncService.PollJobs(r.Context())
	if err != nil {
		h.fail(w, r, err, "Ошибка опроса статусов снапшотов")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// IngestSnapshot импортирует файл снапшота по ссылке.
// 200 - все пакеты записаны, 207 - часть пакетов не записана
//
//	@Summary	Импортировать файл снапшота
//	@Tags		sync
//	@Accept		json
//	@Produce	json
//	@Param		request	body		services.IngestRequest	true	"Ссылка на файл и задача"
//	@Success	200		{object}	services.IngestOutcome
//	@Success	207		{object}	services.IngestOutcome
//	@Failure	400		{object}	errorResponse
//	@Failure	409		{object}	errorResponse
//	@Router		/sync/ingest [post]
func (h *SyncHandler) IngestSnapshot(w http.ResponseWriter, r *http.Request) {
	var req services.IngestRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.SnapshotURL == "" {
		h.badRequest(w, r, "Не указан snapshot_url")
		return
	}
	if u, err := url.Parse(req.SnapshotURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		h.badRequest(w, r, "snapshot_url должен быть абсолютной ссылкой http(s)")
		return
	}

	outcome, err := h.syncService.IngestSnapshot(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, "Ошибка импорта снапшота")
		return
	}

	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusMultiStatus
	}
	render.Status(r, status)
	render.JSON(w, r, outcome)
}

// AbortSnapshot отменяет снапшот или самую свежую ожидающую задачу
//
//	@Summary	Отменить снапшот
//	@Tags		sync
//	@Accept		json
//	@Produce	json
//	@Param		request	body		abortRequest	false	"Снапшот и причина"
//	@Success	200		{object}	services.AbortOutcome
//	@Failure	502		{object}	errorResponse
//	@Router		/sync/abort [post]
func (h *SyncHandler) AbortSnapshot(w http.ResponseWriter, r *http.Request) {
	var req abortRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.syncService.AbortSnapshot(r.Context(), req.SnapshotID, req.Reason)
	if err != nil {
		h.fail(w, r, err, "Ошибка отмены снапшота")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, outcome)
}

// ListJobs журнал задач синхронизации, новые первыми
//
//	@Summary	Список задач синхронизации
//	@Tags		jobs
//	@Produce	json
//	@Param		status		query		string	false	"Фильтр по статусу"
//	@Param		page		query		int		false	"Номер страницы"
//	@Param		page_size	query		int		false	"Размер страницы"
//	@Success	200			{object}	response
//	@Router		/sync/jobs [get]
func (h *SyncHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	pagination := utils.PaginationFromQuery(r.URL.Query())

	filter := models.JobFilter{
		Limit:  pagination.GetLimit(),
		Offset: pagination.GetOffset(),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := models.SyncJobStatus(status)
		if !s.IsValid() {
			h.badRequest(w, r, "Неизвестный статус задачи: "+status)
			return
		}
		filter.Statuses = []models.SyncJobStatus{s}
	}

	jobs, total, err := h.syncService.ListJobs(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "Ошибка получения списка задач")
		return
	}
	if jobs == nil {
		jobs = []*models.SyncJob{}
	}

	pagination.SetTotal(int64(total))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Message: "OK",
		Data:    jobs,
		Meta: map[string]interface{}{
			"pagination": pagination,
		},
	})
}

// GetJob задача синхронизации по ID
//
//	@Summary	Задача синхронизации
//	@Tags		jobs
//	@Produce	json
//	@Param		id	path		string	true	"ID задачи"
//	@Success	200	{object}	response
//	@Failure	404	{object}	errorResponse
//	@Router		/sync/jobs/{id} [get]
func (h *SyncHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		h.badRequest(w, r, "ID задачи не указан")
		return
	}

	job, err := h.syncService.GetJob(r.Context(), jobID)
	if err != nil {
		h.fail(w, r, err, "Ошибка получения задачи")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Message: "OK",
		Data:    job,
	})
}

// decode читает необязательное JSON тело. Пустое тело - пустой запрос
func (h *SyncHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		render.Status(r, http.StatusRequestEntityTooLarge)
		render.JSON(w, r, errorResponse{
			Error:   "request_too_large",
			Code:    http.StatusRequestEntityTooLarge,
			Message: "Слишком большое тело запроса",
		})
		return false
	}

	h.badRequest(w, r, "Некорректный JSON: "+err.Error())
	return false
}

func (h *SyncHandler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{
		Error:   "bad_request",
		Code:    http.StatusBadRequest,
		Message: message,
	})
}

// fail отвечает ошибкой со статусом по ее классу
func (h *SyncHandler) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := pkgerrors.HTTPStatus(err)

	if status >= http.StatusInternalServerError {
		h.logger.ErrorWithContext(r.Context(), message,
			interfaces.LogField{Key: "error", Value: err.Error()})
	} else {
		h.logger.WarnWithContext(r.Context(), message,
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:   errorCode(status),
		Code:    status,
		Message: message + ": " + err.Error(),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "auth_expired"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "invalid_state"
	case http.StatusBadGateway:
		return "upstream_error"
	default:
		return "internal_error"
	}
}
