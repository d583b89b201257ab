package domain

import (
	"fmt"
	"strings"
	"time"
)

// LabelMark is one annotation drawn on a WorkItem.
type LabelMark struct {
	ID         string
	WorkItemID string
	CreatedBy  string
	ClassName  string
	Shape      Shape
	Points     []Point
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Shape is the geometry kind of a LabelMark.
type Shape string

const (
	ShapeBox     Shape = "BOX"
	ShapePolygon Shape = "POLYGON"
	ShapePoint   Shape = "POINT"
)

func (s Shape) IsValid() bool {
	switch s {
	case ShapeBox, ShapePolygon, ShapePoint:
		return true
	}
	return false
}

// Point is a pixel coordinate on the image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (m *LabelMark) Validate() error {
	if strings.TrimSpace(m.ClassName) == "" {
		return fmt.Errorf("%w: class name is required", ErrValidation)
	}
	if !m.Shape.IsValid() {
		return fmt.Errorf("%w: invalid shape %q", ErrValidation, m.Shape)
	}

	switch m.Shape {
	case ShapeBox:
		if len(m.Points) != 2 {
			return fmt.Errorf("%w: box requires exactly 2 points (got %d)", ErrValidation, len(m.Points))
		}
		if m.Points[0].X >= m.Points[1].X || m.Points[0].Y >= m.Points[1].Y {
			return fmt.Errorf("%w: box corners must be top-left then bottom-right", ErrValidation)
		}
	case ShapePolygon:
		if len(m.Points) < 3 {
			return fmt.Errorf("%w: polygon requires at least 3 points (got %d)", ErrValidation, len(m.Points))
		}
	case ShapePoint:
		if len(m.Points) != 1 {
			return fmt.Errorf("%w: point requires exactly 1 point (got %d)", ErrValidation, len(m.Points))
		}
	}

	for _, p := range m.Points {
		if p.X < 0 || p.Y < 0 {
			return fmt.Errorf("%w: coordinates must be non-negative", ErrValidation)
		}
	}
	return nil
}

func ParseShape(s string) (Shape, error) {
	sh := Shape(normalizeEnum(s))
	if !sh.IsValid() {
		return "", fmt.Errorf("%w: invalid shape %q", ErrValidation, s)
	}
	return sh, nil
}
