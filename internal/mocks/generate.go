// Package mocks provides gomock implementations of the core ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockScanRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), int64(1)).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=scan_repository_mock.go github.com/target/a11y-scanner/internal/core ScanRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=scan_reconcile_repository_mock.go github.com/target/a11y-scanner/internal/core ScanReconcileRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=auditor_mock.go github.com/target/a11y-scanner/internal/core Auditor
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=report_store_mock.go github.com/target/a11y-scanner/internal/core ReportStore
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=scan_dispatcher_mock.go github.com/target/a11y-scanner/internal/core ScanDispatcher
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cache_repository_mock.go github.com/target/a11y-scanner/internal/core CacheRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=token_verifier_mock.go github.com/target/a11y-scanner/internal/core TokenVerifier
