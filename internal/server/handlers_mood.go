package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *App) listMoods(c *gin.Context) {
	user, err := a.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moods": user.Moods})
}
