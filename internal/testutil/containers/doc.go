// Package containers provides testcontainer management for integration tests.
//
// This package offers helpers for starting and managing Docker containers
// during integration testing using testcontainers-go. It currently supports
// MySQL 8.0 database containers for exercising the MySQL storage backend.
//
// Container Lifecycle:
//
// Containers are typically managed using TestMain in integration test packages:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Build Tags:
//
// Integration tests using this package should use the "integration" build tag:
//
//	//go:build integration
package containers
