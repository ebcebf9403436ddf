package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/jobqueue"
)

// QueueController reports on the grant retry queue.
type QueueController struct {
	queue *jobqueue.Queue
}

func NewQueueController(queue *jobqueue.Queue) *QueueController {
	return &QueueController{queue: queue}
}

// HandleQueueStats returns retry queue sizes and job counters.
func (qc *QueueController) HandleQueueStats(c *fiber.Ctx) error {
	if qc.queue == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"enabled": false})
	}

	ctx := c.UserContext()
	pending, err := qc.queue.GetQueueSize(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to read retry queue: %v", err),
		})
	}
	processing, err := qc.queue.GetProcessingSize(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to read retry queue: %v", err),
		})
	}
	stats, err := qc.queue.GetJobStats(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to read retry queue stats: %v", err),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"enabled":    true,
		"running":    qc.queue.IsRunning(),
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}
