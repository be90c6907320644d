package cococonv

// TFRecord object detection specific functionality.

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
)

// TFFeatureMap maps feature names to their values. Values must be convertible to
// tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// toTFFeatures converts a COCO image and its annotations to the TF object detection features.
// Annotations without a bounding box are not objects and are left out.
//
// With autoOrient the image is stored with its EXIF orientation applied, so that the encoded
// pixels match boxes measured on the oriented image.
func toTFFeatures(img Image, annotations []Annotation, imagePath string,
	categoryNames map[int]string, autoOrient bool) (TFFeatureMap, error) {

	// Get the image format and read the image data.
	config, format, err := decodeImageConfig(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode the image metadata: %v", err)
	}
	imgWidth, imgHeight := config.Width, config.Height
	var imgData []byte
	if autoOrient {
		imgData, imgWidth, imgHeight, err = encodeOrientedImage(imagePath, format)
	} else {
		imgData, err = readFile(imagePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read the image: %v", err)
	}

	// Prepare the feature map for the per file data.
	f := make(TFFeatureMap, 16)
	f["image/height"] = imgHeight
	f["image/width"] = imgWidth
	f["image/filename"] = img.FileName
	f["image/source_id"] = strconv.Itoa(img.ID)
	f["image/encoded"] = imgData
	f["image/format"] = format

	// Prepare the per object data.
	xmins := make([]float32, 0, len(annotations))
	ymins := make([]float32, 0, len(annotations))
	xmaxs := make([]float32, 0, len(annotations))
	ymaxs := make([]float32, 0, len(annotations))
	classes := make([]string, 0, len(annotations))
	classIDs := make([]int64, 0, len(annotations))
	width, height := float32(imgWidth), float32(imgHeight)
	for _, a := range annotations {
		if len(a.BBox) != 4 {
			continue
		}
		xmins = append(xmins, float32(a.BBox[0])/width)
		ymins = append(ymins, float32(a.BBox[1])/height)
		xmaxs = append(xmaxs, float32(a.BBox[0]+a.BBox[2])/width)
		ymaxs = append(ymaxs, float32(a.BBox[1]+a.BBox[3])/height)

		name, ok := categoryNames[a.CategoryID]
		if !ok {
			name = strconv.Itoa(a.CategoryID)
		}
		classes = append(classes, name)
		classIDs = append(classIDs, int64(a.CategoryID))
	}
	f["image/object/bbox/xmin"] = xmins
	f["image/object/bbox/ymin"] = ymins
	f["image/object/bbox/xmax"] = xmaxs
	f["image/object/bbox/ymax"] = ymaxs
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs

	return f, nil
}

// WriteTFRecord does a streaming conversion, serialisation and file write of the COCO document to
// one or more TFRecord files stored under recordFilePath (with suffixes added when numShards>1).
// The encoded images are read from imageDir.
//
// The document categories are written as label map to labelMapPath, so category ids must mean the
// same category in every image (a run-wide category scope). Documents with duplicate image ids are
// rejected with ErrDuplicateImageID. autoOrient must match the setting doc was converted with.
func WriteTFRecord(recordFilePath, labelMapPath string, doc *Document, imageDir string,
	numShards int, autoOrient bool) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if err := checkUniqueImageIDs(doc); err != nil {
		return err
	}

	if numShards <= 0 {
		numShards = 1
	}
	if len(doc.Images) < numShards && len(doc.Images) > 0 {
		numShards = len(doc.Images)
	}

	categoryNames := make(map[int]string, len(doc.Categories))
	for _, c := range doc.Categories {
		categoryNames[c.ID] = c.Name
	}
	byImage := make(map[int][]Annotation, len(doc.Images))
	for _, a := range doc.Annotations {
		byImage[a.ImageID] = append(byImage[a.ImageID], a)
	}

	fmtShardSuffix := func(idx int) string {
		return fmt.Sprintf("-%05d-of-%05d", idx, numShards)
	}

	var shardFile *os.File
	shardSize := int(math.Ceil(float64(len(doc.Images)) / float64(numShards)))
	shardIdx := -1
	defer func() {
		if shardFile != nil {
			closeWithErrCheck(shardFile, &err)
		}
	}()

	// Convert and serialise one image at a time.
	for i, img := range doc.Images {
		// Check if a new shard file needs to be opened for writing.
		if i%shardSize == 0 {
			shardIdx++

			// Close the previous shard file.
			if shardFile != nil {
				if err := shardFile.Close(); err != nil {
					return err
				}
				shardFile = nil
			}

			// Create the new shard file.
			shardPath := recordFilePath
			if numShards > 1 {
				shardPath += fmtShardSuffix(shardIdx)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return fmt.Errorf("failed to create shard at %q: %v", shardPath, err)
			}
			shardFile = f
		}

		// Convert the image data to an example.
		imagePath := filepath.Join(imageDir, img.FileName)
		features, err := toTFFeatures(img, byImage[img.ID], imagePath, categoryNames, autoOrient)
		if err != nil {
			return fmt.Errorf("failed to convert %q: %v", imagePath, err)
		}
		tfExample := example.New(features)

		// Write the example.
		if err := writeTFRecordExample(shardFile, tfExample); err != nil {
			return fmt.Errorf("failed to write example for %q: %v", imagePath, err)
		}
	}

	if len(doc.Images) == 0 {
		log.Print("No images to write as TFRecord")
	}

	return saveTFRecordLabelMap(labelMapPath, doc.Categories)
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// saveTFRecordLabelMap writes the categories in the prototxt label map format of the TF object
// detection API to path.
func saveTFRecordLabelMap(path string, categories []Category) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create the label map file %q: %v", path, err)
	}
	defer closeWithErrCheck(file, &err)

	w := bufio.NewWriter(file)
	for _, c := range categories {
		if _, err := fmt.Fprintf(w, "item {\n  id: %d\n  name: %q\n}\n", c.ID, c.Name); err != nil {
			return fmt.Errorf("failed to write the label map %q: %v", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write the label map %q: %v", path, err)
	}

	return nil
}
