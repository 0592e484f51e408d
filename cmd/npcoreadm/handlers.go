package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hollowmere/npccore/internal/memory"
	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/trace"
)

// adminDeps collects the store interfaces and trace fabric the admin
// routes read from. A nil store means that concern is disabled for this
// process (memory.enabled false) and its endpoints answer 503.
type adminDeps struct {
	goals    memory.NpcGoalStore
	needs    memory.NpcNeedStore
	memories memory.NpcMemoryStore
	kb       memory.WorldKnowledgeBase
	tracer   *trace.Fabric
}

func registerRoutes(r *gin.Engine, deps *adminDeps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"memory_store": deps.goals != nil,
		})
	})

	npcs := r.Group("/npcs/:id")
	npcs.GET("/goals", deps.listGoals)
	npcs.GET("/needs", deps.listNeeds)
	npcs.GET("/memories", deps.recallMemories)
	npcs.GET("/trace/subscribers", deps.traceSubscriberCount)
	npcs.POST("/trace/subscribe", deps.traceSubscribe)
	npcs.DELETE("/trace/subscribe/:subscriberId", deps.traceUnsubscribe)

	r.GET("/kb/:key", deps.getKbEntry)
}

func (d *adminDeps) listGoals(c *gin.Context) {
	if d.goals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "memory store disabled"})
		return
	}
	npcID := c.Param("id")
	out, err := d.goals.GetAll(c.Request.Context(), npcID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"npc_id": npcID, "goals": out})
}

func (d *adminDeps) listNeeds(c *gin.Context) {
	if d.needs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "memory store disabled"})
		return
	}
	npcID := c.Param("id")
	out, err := d.needs.GetAll(c.Request.Context(), npcID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"npc_id": npcID, "needs": out})
}

func (d *adminDeps) recallMemories(c *gin.Context) {
	if d.memories == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "memory store disabled"})
		return
	}
	npcID := c.Param("id")
	topK, _ := strconv.Atoi(c.Query("top_k"))
	query := npctypes.MemoryQuery{
		NpcID:   npcID,
		Subject: c.Query("subject"),
		TopK:    topK,
	}
	out, err := d.memories.Recall(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"npc_id": npcID, "memories": out})
}

func (d *adminDeps) traceSubscriberCount(c *gin.Context) {
	npcID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{"npc_id": npcID, "subscribers": d.tracer.SubscriberCount(npcID)})
}

// loggingSubscriber is the trace.Subscriber handed out by traceSubscribe
// when the caller doesn't ask for a NATS bridge — it has nowhere to push
// lines for an HTTP request/response cycle, so it discards every line; its
// attachment still shows in the subscriber-count endpoint.
type loggingSubscriber struct{}

func (loggingSubscriber) Deliver(trace.Line) {}

func (d *adminDeps) traceSubscribe(c *gin.Context) {
	var body struct {
		SubscriberID string `json:"subscriber_id" binding:"required"`
		NatsURL      string `json:"nats_url"`
		NatsSubject  string `json:"nats_subject"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	npcID := c.Param("id")

	var sub trace.Subscriber = loggingSubscriber{}
	if body.NatsURL != "" {
		subject := body.NatsSubject
		if subject == "" {
			subject = "npccore.trace"
		}
		bridge, err := trace.NewNatsBridge(body.NatsURL, subject)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		sub = bridge
	}

	d.tracer.Subscribe(npcID, body.SubscriberID, sub)
	c.JSON(http.StatusOK, gin.H{"npc_id": npcID, "subscriber_id": body.SubscriberID, "subscribed": true})
}

func (d *adminDeps) traceUnsubscribe(c *gin.Context) {
	npcID := c.Param("id")
	subscriberID := c.Param("subscriberId")
	d.tracer.Unsubscribe(npcID, subscriberID)
	c.JSON(http.StatusOK, gin.H{"npc_id": npcID, "subscriber_id": subscriberID, "subscribed": false})
}

func (d *adminDeps) getKbEntry(c *gin.Context) {
	if d.kb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "memory store disabled"})
		return
	}
	key := c.Param("key")
	entry, err := d.kb.Get(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
