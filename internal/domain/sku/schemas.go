package sku

import "strings"

// Resource type ids as reported in a SKU's resourceType field
const (
	TypeAvailabilitySets = "availabilitySets"
	TypeSnapshots        = "snapshots"
	TypeDisks            = "disks"
	TypeHostGroupsHosts  = "hostGroups/hosts"
	TypeVirtualMachines  = "virtualMachines"
)

func capability(t FieldType, name string) Capability {
	return Capability{Name: name, Column: strings.ToLower(name), Type: t}
}

func capabilities(t FieldType, names ...string) []Capability {
	out := make([]Capability, len(names))
	for i, n := range names {
		out[i] = capability(t, n)
	}
	return out
}

func join(groups ...[]Capability) []Capability {
	var out []Capability
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var availabilitySetsSchema = Schema{
	ResourceType: TypeAvailabilitySets,
	Table:        TableName(TypeAvailabilitySets),
	Capabilities: capabilities(FieldInteger, "MaximumPlatformFaultDomainCount"),
}

var snapshotsSchema = Schema{
	ResourceType:        TypeSnapshots,
	Table:               TableName(TypeSnapshots),
	KeepRawCapabilities: true,
}

var disksSchema = Schema{
	ResourceType: TypeDisks,
	Table:        TableName(TypeDisks),
	Capabilities: join(
		capabilities(FieldInteger,
			"MinIopsPerGiBReadOnly",
			"MaxIOpsReadWrite",
			"MaxZonalFaultDomainCount",
			"BurstCreditBucketSizeInIO",
			"MaxBurstBandwidthMBps",
			"MaxSizeGiB",
			"MaxIopsPerGiBReadWrite",
			"MinIopsReadOnly",
			"MaxIOps",
			"MinIOpsReadWrite",
			"MinBandwidthMBps",
			"MaxBandwidthMBpsReadOnly",
			"MinIopsPerGiBReadWrite",
			"MinIOSizeKiBps",
			"MaxBandwidthMBpsPerformancePlus",
			"MinBandwidthMBpsReadOnly",
			"MaxValueOfMaxShares",
			"MaxBurstDurationInMin",
			"BurstCreditBucketSizeInGiB",
			"MinBandwidthMBpsReadWrite",
			"MaxBandwidthMBpsReadWrite",
			"PlatformFaultDomainCount",
			"MinIOps",
			"MaxIOpsPerformancePlus",
		),
		capabilities(FieldText, "BillingPartitionSizes"),
		capabilities(FieldInteger,
			"MaxBurstIops",
			"MinSizeGiB",
			"MaxIopsPerGiBReadOnly",
			"MaxBandwidthMBps",
			"MaxIOSizeKiBps",
			"MaxIopsReadOnly",
		),
	),
}

var hostGroupsHostsSchema = Schema{
	ResourceType: TypeHostGroupsHosts,
	Table:        TableName(TypeHostGroupsHosts),
	Capabilities: join(
		capabilities(FieldInteger, "Cores", "vCPUsPerCore", "vCPUs"),
		capabilities(FieldBoolean, "SupportsAutoplacement"),
	),
}

var virtualMachinesSchema = Schema{
	ResourceType:    TypeVirtualMachines,
	Table:           TableName(TypeVirtualMachines),
	FanOutLocations: true,
	Capabilities: []Capability{
		capability(FieldBoolean, "LowPriorityCapable"),
		capability(FieldDecimal, "MemoryGB"),
		capability(FieldInteger, "vCPUsAvailable"),
		capability(FieldBoolean, "CapacityReservationSupported"),
		capability(FieldDecimal, "CachedDiskBytes"),
		capability(FieldText, "HyperVGenerations"),
		capability(FieldInteger, "vCPUsPerCore"),
		capability(FieldInteger, "MaxDataDiskCount"),
		capability(FieldBoolean, "RdmaEnabled"),
		capability(FieldInteger, "CombinedTempDiskAndCachedIOPS"),
		capability(FieldBoolean, "UltraSSDAvailable"),
		capability(FieldText, "VMDeploymentTypes"),
		capability(FieldDecimal, "CombinedTempDiskAndCachedReadBytesPerSecond"),
		capability(FieldDate, "RetirementDateUtc"),
		capability(FieldInteger, "OSVhdSizeMB"),
		capability(FieldInteger, "MaxResourceVolumeMB"),
		capability(FieldBoolean, "TrustedLaunchDisabled"),
		capability(FieldInteger, "MaxWriteAcceleratorDisksAllowed"),
		capability(FieldText, "ParentSize"),
		capability(FieldInteger, "NvmeSizePerDiskInMiB"),
		capability(FieldInteger, "NvmeDiskSizeInMiB"),
		capability(FieldText, "CpuArchitectureType"),
		capability(FieldInteger, "UncachedDiskIOPS"),
		capability(FieldInteger, "vCPUs"),
		capability(FieldBoolean, "PremiumIO"),
		capability(FieldText, "SupportedEphemeralOSDiskPlacements"),
		capability(FieldText, "ConfidentialComputingType"),
		capability(FieldText, "DiskControllerTypes"),
		capability(FieldInteger, "ACUs"),
		capability(FieldBoolean, "MemoryPreservingMaintenanceSupported"),
		capability(FieldBoolean, "EncryptionAtHostSupported"),
		capability(FieldInteger, "MaxNetworkInterfaces"),
		capability(FieldBoolean, "HibernationSupported"),
		capability(FieldDecimal, "UncachedDiskBytesPerSecond"),
		capability(FieldBoolean, "EphemeralOSDiskSupported"),
		capability(FieldInteger, "GPUs"),
		capability(FieldBoolean, "AcceleratedNetworkingEnabled"),
		capability(FieldDecimal, "CombinedTempDiskAndCachedWriteBytesPerSecond"),
	},
}

// builtinSchemas is the registration order used by DefaultRegistry
var builtinSchemas = []Schema{
	availabilitySetsSchema,
	snapshotsSchema,
	disksSchema,
	hostGroupsHostsSchema,
	virtualMachinesSchema,
}
