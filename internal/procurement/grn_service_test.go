package procurement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

func approvedPO(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	ctx := testContext()
	po, err := svc.Create(ctx, CreatePOInput{
		VendorID: 1,
		Lines: []POLineInput{
			{SKU: "SKU-TEA", Quantity: 10, UnitPrice: 250},
		},
	})
	require.NoError(t, err)
	po, err = svc.Approve(ctx, po.PONumber)
	require.NoError(t, err)
	return po
}

func TestGRNRejectsOverReceipt(t *testing.T) {
	repo := newMemoryRepo()
	svc, receipts, stk := newTestServices(repo)
	ctx := testContext()
	po := approvedPO(t, svc)

	_, err := receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-100",
		QCStatus:        QCStatusExcellent,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 11, AcceptedQty: 11}},
	})
	require.True(t, shared.IsValidation(err))
	require.Empty(t, stk.postings)

	// partial receipt, then a second GRN exceeding the remainder
	_, err = receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-101",
		QCStatus:        QCStatusExcellent,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 7, AcceptedQty: 7}},
	})
	require.NoError(t, err)

	_, err = receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-102",
		QCStatus:        QCStatusExcellent,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 4, AcceptedQty: 4}},
	})
	require.True(t, shared.IsValidation(err))
	require.Equal(t, 7.0, stk.accepted("SKU-TEA"))
}

func TestGRNFullReceiptWithRejectsDelivers(t *testing.T) {
	repo := newMemoryRepo()
	svc, receipts, stk := newTestServices(repo)
	ctx := testContext()
	po := approvedPO(t, svc)

	// rejects count towards the ordered quantity but never reach stock
	_, err := receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-150",
		QCStatus:        QCStatusModerate,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 10, AcceptedQty: 9, RejectedQty: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 9.0, stk.accepted("SKU-TEA"))

	got, err := svc.Get(ctx, po.PONumber)
	require.NoError(t, err)
	require.Equal(t, POStatusDelivered, got.Status)
}

func TestGRNRejectsAcceptedPlusRejectedOverReceived(t *testing.T) {
	repo := newMemoryRepo()
	svc, receipts, _ := newTestServices(repo)
	ctx := testContext()
	po := approvedPO(t, svc)

	_, err := receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-200",
		QCStatus:        QCStatusModerate,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 5, AcceptedQty: 4, RejectedQty: 2}},
	})
	require.True(t, shared.IsValidation(err))
}

func TestGRNRejectsUnknownLine(t *testing.T) {
	repo := newMemoryRepo()
	svc, receipts, _ := newTestServices(repo)
	ctx := testContext()
	po := approvedPO(t, svc)

	_, err := receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-300",
		QCStatus:        QCStatusExcellent,
		Lines:           []GRNLineInput{{LineNo: 9, ReceivedQty: 1, AcceptedQty: 1}},
	})
	require.True(t, shared.IsValidation(err))
}

func TestGRNRejectedOnDraftPO(t *testing.T) {
	repo := newMemoryRepo()
	svc, receipts, stk := newTestServices(repo)
	ctx := testContext()

	po, err := svc.Create(ctx, CreatePOInput{VendorID: 1, Lines: []POLineInput{{SKU: "SKU-TEA", Quantity: 5, UnitPrice: 100}}})
	require.NoError(t, err)

	_, err = receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-400",
		QCStatus:        QCStatusExcellent,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 5, AcceptedQty: 5}},
	})
	require.True(t, shared.IsInvalidState(err))
	require.Empty(t, stk.postings)
}

func TestGRNDuplicateChallanConflicts(t *testing.T) {
	repo := newMemoryRepo()
	svc, receipts, _ := newTestServices(repo)
	ctx := testContext()
	po := approvedPO(t, svc)

	input := CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-500",
		QCStatus:        QCStatusExcellent,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 2, AcceptedQty: 2}},
	}
	_, err := receipts.Create(ctx, input)
	require.NoError(t, err)

	_, err = receipts.Create(ctx, input)
	require.True(t, errors.Is(err, shared.ErrIdempotencyConflict))
}

func TestGRNCommitFailurePostsNoStock(t *testing.T) {
	repo := newMemoryRepo()
	svc, receipts, stk := newTestServices(repo)
	ctx := testContext()
	po := approvedPO(t, svc)

	// the receipt, the PO status and the stock posting roll back together
	repo.commitErr = errors.New("connection reset during commit")
	_, err := receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-700",
		QCStatus:        QCStatusExcellent,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 10, AcceptedQty: 10}},
	})
	require.Error(t, err)
	require.Empty(t, stk.postings)

	got, err := svc.Get(ctx, po.PONumber)
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, got.Status)

	// the challan is usable again once the failure clears
	repo.commitErr = nil
	_, err = receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-700",
		QCStatus:        QCStatusExcellent,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 10, AcceptedQty: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, 10.0, stk.accepted("SKU-TEA"))
}

func TestQCUpdateIsMetadataOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc, receipts, stk := newTestServices(repo)
	ctx := testContext()
	po := approvedPO(t, svc)

	grn, err := receipts.Create(ctx, CreateGRNInput{
		PONumber:        po.PONumber,
		DeliveryChallan: "DC-600",
		QCStatus:        QCStatusExcellent,
		Lines:           []GRNLineInput{{LineNo: 1, ReceivedQty: 4, AcceptedQty: 3, RejectedQty: 1}},
	})
	require.NoError(t, err)
	before := stk.accepted("SKU-TEA")

	updated, err := receipts.UpdateQC(ctx, grn.GRNNumber, QCStatusBad, "mould on cartons")
	require.NoError(t, err)
	require.Equal(t, QCStatusBad, updated.QCStatus)
	require.Equal(t, before, stk.accepted("SKU-TEA"))

	// QC stays editable even after the PO moves on
	require.NoError(t, svc.MarkDelivered(ctx, po.PONumber))
	_, err = receipts.UpdateQC(ctx, grn.GRNNumber, QCStatusModerate, "re-inspected")
	require.NoError(t, err)

	_, err = receipts.UpdateQC(ctx, grn.GRNNumber, QCStatus("great"), "")
	require.True(t, shared.IsValidation(err))
}
