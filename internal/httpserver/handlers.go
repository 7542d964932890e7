package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/phone"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/repo"
)

// -- Chat entry points --

// interestSentinel marks frontend product buttons: they submit the product
// wrapped in the nombre field as "Interesado en <producto>".
const interestSentinel = "Interesado en "

type startChatRequest struct {
	Nombre     string `json:"nombre"`
	Email      string `json:"email"`
	Referencia string `json:"referencia"`
}

func (s *Server) handleStartChat(c *gin.Context) {
	var req startChatRequest
	// Body is optional: an empty request starts a generic chat.
	_ = c.ShouldBindJSON(&req)

	greeting := s.greeting(productFromName(req.Nombre))
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"link":            s.waLink(greeting),
		"mensaje_inicial": greeting,
	})
}

func productFromName(nombre string) string {
	idx := strings.Index(nombre, interestSentinel)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(nombre[idx+len(interestSentinel):])
}

type captureLeadRequest struct {
	Nombre   string `json:"nombre" binding:"required"`
	Telefono string `json:"telefono" binding:"required"`
	Email    string `json:"email"`
	Producto string `json:"producto"`
}

func (s *Server) handleCaptureLead(c *gin.Context) {
	var req captureLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nombre y telefono son requeridos"})
		return
	}
	if !phone.IsPlausible(req.Telefono) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telefono no válido"})
		return
	}

	newLead := repo.NewLead{Phone: req.Telefono, Name: &req.Nombre}
	if req.Email != "" {
		newLead.Email = &req.Email
	}

	lead, err := s.deps.Repository.GetLeadByPhone(c.Request.Context(), req.Telefono)
	switch {
	case err == nil:
		upd := repo.LeadUpdate{Name: &req.Nombre}
		if req.Email != "" {
			upd.Email = &req.Email
		}
		if err := s.deps.Repository.UpdateLead(c.Request.Context(), lead.ID, upd); err != nil {
			s.serverError(c, "actualizar lead", err)
			return
		}
	case errors.Is(err, repo.ErrNotFound):
		if lead, err = s.deps.Repository.CreateLead(c.Request.Context(), newLead); err != nil {
			s.serverError(c, "crear lead", err)
			return
		}
	default:
		s.serverError(c, "buscar lead", err)
		return
	}

	greeting := s.greeting(req.Producto)
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"lead_id":         lead.ID,
		"link":            s.waLink(greeting),
		"mensaje_inicial": greeting,
	})
}

func (s *Server) greeting(producto string) string {
	producto = strings.TrimSpace(producto)
	if producto == "" {
		return fmt.Sprintf("Hola! Me interesa conocer más sobre %s", s.cfg.CompanyName)
	}
	return fmt.Sprintf("Hola! Me interesa conocer más sobre %s de %s", producto, s.cfg.CompanyName)
}

// waLink renders the wa.me deep link that opens WhatsApp with the greeting
// prefilled.
func (s *Server) waLink(text string) string {
	digits := strings.TrimPrefix(s.cfg.WhatsAppNumber, "whatsapp:")
	digits = strings.TrimPrefix(digits, "+")
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, url.QueryEscape(text))
}

// -- Products --

type productResponse struct {
	ID              string  `json:"id"`
	Nombre          string  `json:"nombre"`
	Categoria       string  `json:"categoria"`
	Precio          float64 `json:"precio"`
	Caracteristicas *string `json:"caracteristicas,omitempty"`
	Descripcion     *string `json:"descripcion,omitempty"`
}

func toProductResponse(p repo.Product) productResponse {
	return productResponse{
		ID:              p.ID,
		Nombre:          p.Name,
		Categoria:       p.Category,
		Precio:          p.Price,
		Caracteristicas: p.Characteristics,
		Descripcion:     p.Description,
	}
}

func toProductResponses(products []repo.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

func (s *Server) handleListProducts(c *gin.Context) {
	products, err := s.deps.Repository.ListActiveProducts(c.Request.Context())
	if err != nil {
		s.serverError(c, "listar productos", err)
		return
	}
	c.JSON(http.StatusOK, toProductResponses(products))
}

func (s *Server) handleProductsByCategory(c *gin.Context) {
	products, err := s.deps.Repository.ListProductsByCategory(c.Request.Context(), c.Param("categoria"))
	if err != nil {
		s.serverError(c, "listar productos por categoría", err)
		return
	}
	c.JSON(http.StatusOK, toProductResponses(products))
}

func (s *Server) handleSearchProducts(c *gin.Context) {
	products, err := s.deps.Repository.SearchProductsByName(c.Request.Context(), c.Param("nombre"))
	if err != nil {
		s.serverError(c, "buscar productos", err)
		return
	}
	c.JSON(http.StatusOK, toProductResponses(products))
}

func (s *Server) handleProductByID(c *gin.Context) {
	product, err := s.deps.Repository.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "producto no encontrado"})
			return
		}
		s.serverError(c, "buscar producto", err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*product))
}

func (s *Server) handleListCategories(c *gin.Context) {
	categories, err := s.deps.Repository.ListCategories(c.Request.Context())
	if err != nil {
		s.serverError(c, "listar categorías", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categorias": categories})
}

// -- Leads --

type leadResponse struct {
	ID           string  `json:"id"`
	Telefono     string  `json:"telefono"`
	Nombre       *string `json:"nombre,omitempty"`
	Email        *string `json:"email,omitempty"`
	Direccion    *string `json:"direccion,omitempty"`
	EstadoCompra string  `json:"estado_compra"`
}

func toLeadResponse(l *repo.Lead) leadResponse {
	return leadResponse{
		ID:           l.ID,
		Telefono:     l.Phone,
		Nombre:       l.Name,
		Email:        l.Email,
		Direccion:    l.Address,
		EstadoCompra: l.PurchaseState,
	}
}

type createLeadRequest struct {
	Telefono  string  `json:"telefono" binding:"required"`
	Nombre    *string `json:"nombre"`
	Email     *string `json:"email"`
	Direccion *string `json:"direccion"`
}

func (s *Server) handleCreateLead(c *gin.Context) {
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telefono es requerido"})
		return
	}
	if !phone.IsPlausible(req.Telefono) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telefono no válido"})
		return
	}

	lead, err := s.deps.Repository.CreateLead(c.Request.Context(), repo.NewLead{
		Phone:   req.Telefono,
		Name:    req.Nombre,
		Email:   req.Email,
		Address: req.Direccion,
	})
	if err != nil {
		s.serverError(c, "crear lead", err)
		return
	}
	c.JSON(http.StatusCreated, toLeadResponse(lead))
}

func (s *Server) handleLeadByPhone(c *gin.Context) {
	lead, err := s.deps.Repository.GetLeadByPhone(c.Request.Context(), c.Param("telefono"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lead no encontrado"})
			return
		}
		s.serverError(c, "buscar lead", err)
		return
	}
	c.JSON(http.StatusOK, toLeadResponse(lead))
}

type updateLeadRequest struct {
	Nombre    *string `json:"nombre"`
	Email     *string `json:"email"`
	Direccion *string `json:"direccion"`
}

func (s *Server) handleUpdateLead(c *gin.Context) {
	var req updateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload inválido"})
		return
	}

	err := s.deps.Repository.UpdateLead(c.Request.Context(), c.Param("id"), repo.LeadUpdate{
		Name:    req.Nombre,
		Email:   req.Email,
		Address: req.Direccion,
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lead no encontrado"})
			return
		}
		s.serverError(c, "actualizar lead", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type conversationEntry struct {
	Remitente string    `json:"remitente"`
	Mensaje   string    `json:"mensaje"`
	Fecha     time.Time `json:"fecha"`
}

func (s *Server) handleLeadConversation(c *gin.Context) {
	leadID := c.Param("id")
	if _, err := s.deps.Repository.GetLeadByID(c.Request.Context(), leadID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lead no encontrado"})
			return
		}
		s.serverError(c, "buscar lead", err)
		return
	}

	records, err := s.deps.Repository.ListRecentMessages(c.Request.Context(), leadID, 0)
	if err != nil {
		s.serverError(c, "listar conversación", err)
		return
	}

	entries := make([]conversationEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, conversationEntry{
			Remitente: rec.Sender,
			Mensaje:   rec.Body,
			Fecha:     rec.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"lead_id": leadID, "mensajes": entries})
}

// -- Orders --

type orderResponse struct {
	Codigo           string           `json:"codigo"`
	Items            []repo.OrderItem `json:"items"`
	Total            float64          `json:"total"`
	Metodo           string           `json:"metodo"`
	DireccionEntrega *string          `json:"direccion_entrega,omitempty"`
	Estado           string           `json:"estado"`
	Pagado           bool             `json:"pagado"`
	Fecha            time.Time        `json:"fecha"`
}

func toOrderResponse(o *repo.Order) orderResponse {
	return orderResponse{
		Codigo:           o.Code,
		Items:            o.Items,
		Total:            o.Total,
		Metodo:           o.Method,
		DireccionEntrega: o.DeliveryAddress,
		Estado:           o.Status,
		Pagado:           o.Paid,
		Fecha:            o.CreatedAt,
	}
}

func (s *Server) handleOrderByCode(c *gin.Context) {
	order, err := s.deps.Repository.GetOrderByCode(c.Request.Context(), c.Param("codigo"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "orden no encontrada"})
			return
		}
		s.serverError(c, "buscar orden", err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// handleConfirmPayment settles an order, clears the lead's pending intent so
// a new purchase can start, and promotes the lead to customer.
func (s *Server) handleConfirmPayment(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("codigo")

	order, err := s.deps.Repository.GetOrderByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "orden no encontrada"})
			return
		}
		s.serverError(c, "buscar orden", err)
		return
	}
	if order.Paid {
		c.JSON(http.StatusOK, gin.H{"success": true, "codigo": code, "estado": repo.PaymentStatePaid})
		return
	}

	if err := s.deps.Repository.MarkOrderPaid(ctx, code); err != nil {
		s.serverError(c, "confirmar pago", err)
		return
	}

	intent := repo.PaymentIntent{
		Method:      order.Method,
		Total:       order.Total,
		State:       repo.PaymentStatePaid,
		Code:        order.Code,
		Paid:        true,
		Address:     order.DeliveryAddress,
		RequestedAt: time.Now(),
	}
	if err := s.deps.Repository.SetLeadPaymentIntent(ctx, order.LeadID, intent); err != nil {
		s.logger.Warn("sync lead payment intent", "error", err, "code", code)
	}
	if err := s.deps.Repository.SetLeadPurchaseState(ctx, order.LeadID, repo.PurchaseStateCustomer); err != nil {
		s.logger.Warn("promote lead", "error", err, "code", code)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "codigo": code, "estado": repo.PaymentStatePaid})
}

func (s *Server) serverError(c *gin.Context, action string, err error) {
	s.logger.Error(action, "error", err)
	s.metrics.Errors.WithLabelValues("http").Inc()
	c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
}
