package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/gocollectd/pkg/typesdb"
)

type dataSourceInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Min  string `json:"min"`
	Max  string `json:"max"`
}

// typesHandler serves the loaded types database.
type typesHandler struct {
	logger logrus.FieldLogger
	types  *typesdb.Database
}

func (th *typesHandler) list(resp http.ResponseWriter, req *http.Request) {
	respondJSON(resp, http.StatusOK, map[string][]string{
		"types": th.types.Names(),
	})
}

func (th *typesHandler) get(resp http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	td, ok := th.types.Resolve(name)
	if !ok {
		respondJSON(resp, http.StatusNotFound, map[string]string{
			"error": "unknown type " + name,
		})
		return
	}
	sources := make([]dataSourceInfo, 0, len(td))
	for _, ds := range td {
		min, max := ds.Bounds()
		sources = append(sources, dataSourceInfo{
			Name: ds.Name,
			Kind: ds.Kind.String(),
			Min:  min,
			Max:  max,
		})
	}
	respondJSON(resp, http.StatusOK, map[string]interface{}{
		"name":         name,
		"data_sources": sources,
	})
}
