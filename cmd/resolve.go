package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/resolve"
	"github.com/sells-group/property-resolver/internal/sheet"
)

// snapshotKey is where the provenance map lives in a workbook.
const snapshotKey = "api_snapshot"

var resolveFlags struct {
	provider string
	apn      string
	fips     string
	address  string
	lat      float64
	lng      float64
	county   string
	city     string
	state    string
	zip      string
	intent   string
	sheet    string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one property and print the normalized result",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context(), "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		req := resolve.Request{Provider: resolveFlags.provider, Context: lookupFromFlags(cmd)}
		if resolveFlags.sheet == "" {
			resp, err := env.Engine.Resolve(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		}
		return resolveIntoSheet(cmd.Context(), cmd.OutOrStdout(), env.Engine, req, resolveFlags.sheet)
	},
}

func lookupFromFlags(cmd *cobra.Command) property.LookupContext {
	lc := property.LookupContext{
		APN:      resolveFlags.apn,
		FIPSCode: resolveFlags.fips,
		Address:  resolveFlags.address,
		County:   resolveFlags.county,
		City:     resolveFlags.city,
		State:    resolveFlags.state,
		ZipCode:  resolveFlags.zip,
		Intent:   property.Intent(resolveFlags.intent),
	}
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
		lat, lng := resolveFlags.lat, resolveFlags.lng
		lc.Lat, lc.Lng = &lat, &lng
	}
	return lc
}

// resolveIntoSheet reads the current form from the workbook, reconciles the
// resolved fields against it, and writes back what was applied.
func resolveIntoSheet(ctx context.Context, out io.Writer, eng *resolve.Engine, req resolve.Request, path string) error {
	wb, err := sheet.Open(path)
	if err != nil {
		return err
	}

	current := wb.Get(append(formKeys(), snapshotKey))
	req.APISnapshot = property.Snapshot{}
	if raw, ok := current[snapshotKey].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.APISnapshot); err != nil {
			return eris.Wrap(err, "resolve: parse workbook api_snapshot")
		}
	}
	delete(current, snapshotKey)
	req.Form = current

	resp, err := eng.Resolve(ctx, req)
	if err != nil {
		return err
	}
	if err := wb.SetAll(resp.Applied); err != nil {
		return err
	}
	snap, err := json.Marshal(resp.NextAPISnapshot)
	if err != nil {
		return eris.Wrap(err, "resolve: encode api_snapshot")
	}
	if err := wb.Set(snapshotKey, string(snap)); err != nil {
		return err
	}
	if err := wb.Save(); err != nil {
		return err
	}

	zap.L().Info("workbook updated", zap.String("path", path), zap.Int("applied", len(resp.Applied)))
	return printJSON(out, resp)
}

// formKeys lists every field a resolution can write.
func formKeys() []string {
	keys := []string{
		property.FieldAddress, property.FieldStreet, property.FieldCity, property.FieldCounty,
		property.FieldState, property.FieldZip, property.FieldAPN, property.FieldAssessorID,
		property.FieldFIPS, property.FieldOwner, property.FieldPropertyType, property.FieldYearBuilt,
		property.FieldLotSqft, property.FieldLotAcres, property.FieldLatitude, property.FieldLongitude,
		property.FieldMarketValue, property.FieldAssessedValue, property.FieldTaxAmount,
		property.FieldPriorTaxAmount, property.FieldTaxYear, property.FieldMillageRate,
		property.FieldAssessmentRatio, property.FieldLastSaleDate, property.FieldLastSalePrice,
		property.FieldTreasuryYield, property.FieldTreasuryAsOf,
		property.FieldPopulation, property.FieldPopulationChange, property.FieldIncome,
		property.FieldIncomeChange, property.FieldPovertyRate, property.FieldEmployment,
		property.FieldEmploymentChange, property.FieldHomeValue, property.FieldHomeValueChange,
		property.FieldViolentCrime, property.FieldPropertyCrime, property.FieldTwoBedroomRent,
		property.FieldELIHouseholds, property.FieldAffordablePer100, property.FieldTotalUnits,
		property.FieldHousingStatus,
	}
	sort.Strings(keys)
	return keys
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveFlags.provider, "provider", "", "provider name (default from config lookup.provider)")
	f.StringVar(&resolveFlags.apn, "apn", "", "assessor parcel number")
	f.StringVar(&resolveFlags.fips, "fips", "", "5-digit county FIPS code")
	f.StringVar(&resolveFlags.address, "address", "", "street address")
	f.Float64Var(&resolveFlags.lat, "lat", 0, "latitude")
	f.Float64Var(&resolveFlags.lng, "lng", 0, "longitude")
	f.StringVar(&resolveFlags.county, "county", "", "county name")
	f.StringVar(&resolveFlags.city, "city", "", "city")
	f.StringVar(&resolveFlags.state, "state", "", "state name or abbreviation")
	f.StringVar(&resolveFlags.zip, "zip", "", "ZIP code")
	f.StringVar(&resolveFlags.intent, "intent", string(property.IntentStep1), "step1 or taxes")
	f.StringVar(&resolveFlags.sheet, "sheet", "", "XLSX workbook to reconcile and write results into")
	rootCmd.AddCommand(resolveCmd)
}
