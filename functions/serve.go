package functions

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// OnLambda reports whether the process was started by the Lambda runtime.
func OnLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// NewRouter mounts h at path on a bare gin engine, accepting every method so
// the handler can answer 405 itself.
func NewRouter(path string, h Handler, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Info("function request")
	})
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.Any(path, GinHandler(h))
	return r
}

// Serve runs h under Lambda when deployed there and as a plain HTTP server on
// port otherwise, shutting down cleanly on SIGINT or SIGTERM.
func Serve(path, port string, h Handler, log logrus.FieldLogger) error {
	if OnLambda() {
		log.Info("starting under AWS Lambda")
		lambda.Start(LambdaHandler(h))
		return nil
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(path, h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
