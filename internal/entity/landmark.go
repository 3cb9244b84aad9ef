package entity

import "image"

const LandmarkCount = 68

// Shape is one face found by the landmark detector together with its 68 keypoints.
type Shape struct {
	Rect   image.Rectangle
	Points [LandmarkCount]image.Point
}
