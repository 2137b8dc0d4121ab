package web_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlassian/gocollectd/pkg/healthcheck"
	"github.com/atlassian/gocollectd/pkg/typesdb"
)

const testTypes = "gauge value:GAUGE:U:U\n" +
	"if_octets rx:DERIVE:0:U, tx:DERIVE:0:U\n"

func testContext(t *testing.T) (context.Context, func()) {
	ctxTest, completeTest := context.WithTimeout(context.Background(), 1100*time.Millisecond)
	go func() {
		after := time.NewTimer(1 * time.Second)
		select {
		case <-ctxTest.Done():
			after.Stop()
		case <-after.C:
			require.Fail(t, "test timed out")
		}
	}()
	return ctxTest, completeTest
}

func testTypesDB(t *testing.T) *typesdb.Database {
	db, err := typesdb.Load(strings.NewReader(testTypes))
	require.NoError(t, err)
	return db
}

func check(report string, status healthcheck.HealthyStatus) healthcheck.HealthcheckFunc {
	return func() (string, healthcheck.HealthyStatus) {
		return report, status
	}
}
