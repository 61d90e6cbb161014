package uploadhandlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

func uploadIdFromRoute(r *http.Request) (uuid.UUID, error) {
	uploadId, err := uuid.Parse(mux.Vars(r)["uploadId"])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid upload id: %w", apiError.ErrApiUploadNotFound)
	}

	return uploadId, nil
}

func partNumberFromRoute(r *http.Request) (int, error) {
	partNumber, err := strconv.Atoi(mux.Vars(r)["partNumber"])
	if err != nil {
		return 0, fmt.Errorf("invalid part number: %w", apiError.ErrApiBadRequest)
	}

	return partNumber, nil
}

func writeJson(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		apiError.HandleHttpError(w, err)
	}
}
