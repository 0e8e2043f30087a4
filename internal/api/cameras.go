package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ajay443/smart-social-distancing/internal/api/models"
	"github.com/ajay443/smart-social-distancing/internal/cameras"
	"github.com/ajay443/smart-social-distancing/internal/mjpeg"
)

// cameraData builds the public descriptor for one running feed.
func cameraData(feed *cameras.Feed) models.CameraData {
	seq := feed.Store.Seq()
	return models.CameraData{
		ID:          feed.Spec.ID,
		Name:        feed.Spec.Name,
		StreamURL:   fmt.Sprintf("/cameras/%s/video_feed", feed.Spec.ID),
		SnapshotURL: fmt.Sprintf("/cameras/%s/snapshot", feed.Spec.ID),
		ContentType: mjpeg.ContentType,
		Birdseye:    feed.Spec.Birdseye,
		Live:        seq > 0,
		Frames:      seq,
	}
}

// registerCameraRoutes sets up the camera descriptor endpoints.
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras/",
		Summary:     "List cameras",
		Description: "List running camera feeds with their stream routes",
		Tags:        []string{"cameras"},
	}, func(ctx context.Context, input *struct{}) (*models.CameraListResponse, error) {
		feeds := s.cameras.List()
		data := models.CameraListData{
			Cameras: make([]models.CameraData, 0, len(feeds)),
			Count:   len(feeds),
		}
		for _, feed := range feeds {
			data.Cameras = append(data.Cameras, cameraData(feed))
		}
		return &models.CameraListResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{id}",
		Summary:     "Get camera",
		Description: "Get one camera feed descriptor",
		Tags:        []string{"cameras"},
		Errors:      []int{404},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id" example:"entrance" doc:"Camera identifier"`
	}) (*models.CameraResponse, error) {
		feed, err := s.cameras.Get(input.ID)
		if err != nil {
			if errors.Is(err, cameras.ErrCameraNotFound) {
				return nil, huma.Error404NotFound("camera not found", err)
			}
			return nil, err
		}
		return &models.CameraResponse{Body: cameraData(feed)}, nil
	})
}
